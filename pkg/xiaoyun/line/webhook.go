// webhook.go decodes inbound webhook deliveries and verifies the
// X-Line-Signature header (HMAC-SHA256 of the raw body, base64-encoded,
// keyed with the channel secret).
package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSignature marks a webhook delivery whose signature does not
// match the channel secret.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventKind identifies the inbound message payload kind.
type EventKind string

const (
	EventText    EventKind = "text"
	EventImage   EventKind = "image"
	EventSticker EventKind = "sticker"
	EventAudio   EventKind = "audio"
)

// Event is one inbound user message event.
type Event struct {
	// Kind is the payload kind.
	Kind EventKind

	// UserID identifies the sender.
	UserID string

	// ReplyToken is the one-shot handle for replying to this event.
	ReplyToken string

	// Text is the message text (EventText).
	Text string

	// MessageID identifies downloadable content (EventImage, EventAudio).
	MessageID string

	// PackageID and StickerID identify the sticker (EventSticker).
	PackageID string
	StickerID string

	// Duration is the audio clip length in milliseconds (EventAudio).
	Duration int
}

// webhookBody mirrors the platform's webhook JSON envelope.
type webhookBody struct {
	Events []struct {
		Type       string `json:"type"`
		ReplyToken string `json:"replyToken"`
		Source     struct {
			UserID string `json:"userId"`
		} `json:"source"`
		Message struct {
			ID        string `json:"id"`
			Type      string `json:"type"`
			Text      string `json:"text"`
			PackageID string `json:"packageId"`
			StickerID string `json:"stickerId"`
			Duration  int    `json:"duration"`
		} `json:"message"`
	} `json:"events"`
}

// ValidateSignature checks the X-Line-Signature header against the body.
func ValidateSignature(channelSecret string, body []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ParseWebhook verifies the signature and decodes the events the bot
// handles. Event types other than message, and message types other than
// text/image/sticker/audio, are silently skipped.
func ParseWebhook(channelSecret string, body []byte, signature string) ([]Event, error) {
	if err := ValidateSignature(channelSecret, body, signature); err != nil {
		return nil, err
	}

	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("decoding webhook body: %w", err)
	}

	events := make([]Event, 0, len(wb.Events))
	for _, raw := range wb.Events {
		if raw.Type != "message" || raw.ReplyToken == "" {
			continue
		}

		ev := Event{
			UserID:     raw.Source.UserID,
			ReplyToken: raw.ReplyToken,
		}
		switch raw.Message.Type {
		case "text":
			ev.Kind = EventText
			ev.Text = raw.Message.Text
		case "image":
			ev.Kind = EventImage
			ev.MessageID = raw.Message.ID
		case "sticker":
			ev.Kind = EventSticker
			ev.PackageID = raw.Message.PackageID
			ev.StickerID = raw.Message.StickerID
		case "audio":
			ev.Kind = EventAudio
			ev.MessageID = raw.Message.ID
			ev.Duration = raw.Message.Duration
		default:
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}
