// Package line implements the thin LINE Messaging API surface the bot
// needs: webhook event decoding with signature verification, the reply
// endpoint, user-content download, and the public sticker CDN. It is a
// deliberately small client, not a general SDK.
package line

import "encoding/json"

// MessageKind identifies the kind of outgoing message.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindSticker MessageKind = "sticker"
	KindImage   MessageKind = "image"
	KindAudio   MessageKind = "audio"
)

// MaxReplyMessages is the platform cap on messages per reply call.
const MaxReplyMessages = 5

// Message is one outgoing message object.
type Message interface {
	Kind() MessageKind
}

// TextMessage is a plain text reply.
type TextMessage struct {
	Text string
}

func (TextMessage) Kind() MessageKind { return KindText }

func (m TextMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", m.Text})
}

// StickerMessage is a sticker reply identified by package + sticker IDs.
type StickerMessage struct {
	PackageID string
	StickerID string
}

func (StickerMessage) Kind() MessageKind { return KindSticker }

func (m StickerMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		PackageID string `json:"packageId"`
		StickerID string `json:"stickerId"`
	}{"sticker", m.PackageID, m.StickerID})
}

// ImageMessage is an image reply. PreviewURL falls back to URL when empty.
type ImageMessage struct {
	URL        string
	PreviewURL string
}

func (ImageMessage) Kind() MessageKind { return KindImage }

func (m ImageMessage) MarshalJSON() ([]byte, error) {
	preview := m.PreviewURL
	if preview == "" {
		preview = m.URL
	}
	return json.Marshal(struct {
		Type       string `json:"type"`
		Original   string `json:"originalContentUrl"`
		PreviewURL string `json:"previewImageUrl"`
	}{"image", m.URL, preview})
}

// AudioMessage is an audio clip reply. Duration is in milliseconds.
type AudioMessage struct {
	URL      string
	Duration int
}

func (AudioMessage) Kind() MessageKind { return KindAudio }

func (m AudioMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		URL      string `json:"originalContentUrl"`
		Duration int    `json:"duration"`
	}{"audio", m.URL, m.Duration})
}
