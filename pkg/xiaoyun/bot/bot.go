// bot.go is the conversation turn controller: one inbound event in, one
// dispatched reply out. Every terminal path of a turn ends in a dispatch
// call, so no user is ever left without an answer.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/directive"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/line"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/llm"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/session"
)

// ModelClient is the model collaborator contract.
type ModelClient interface {
	Complete(ctx context.Context, contents []llm.Content) (string, error)
	CompleteVision(ctx context.Context, contents []llm.Content) (string, error)
}

// ContentFetcher downloads inbound media payloads.
type ContentFetcher interface {
	GetContent(ctx context.Context, messageID string) ([]byte, string, error)
	FetchStickerImage(ctx context.Context, stickerID string) ([]byte, error)
}

// Dispatcher delivers a directive list for a reply token.
type Dispatcher interface {
	DispatchDirectives(ctx context.Context, replyToken string, directives []directive.Directive) error
}

// StickerMeanings interprets a user-sent sticker when its image cannot be
// fetched.
type StickerMeanings interface {
	MeaningOf(stickerID string) string
}

// Bot drives one conversation turn per inbound event.
type Bot struct {
	store      session.Store
	model      ModelClient
	fetcher    ContentFetcher
	dispatcher Dispatcher
	parser     *directive.Parser
	discovery  *Discovery
	meanings   StickerMeanings
	wireFormat string
	now        func() time.Time
	logger     *slog.Logger
}

// New wires a turn controller.
func New(store session.Store, model ModelClient, fetcher ContentFetcher, dispatcher Dispatcher, parser *directive.Parser, discovery *Discovery, meanings StickerMeanings, wireFormat string, logger *slog.Logger) *Bot {
	if wireFormat == "" {
		wireFormat = WireFormatJSON
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		store:      store,
		model:      model,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		parser:     parser,
		discovery:  discovery,
		meanings:   meanings,
		wireFormat: wireFormat,
		now:        time.Now,
		logger:     logger.With("component", "bot"),
	}
}

// HandleEvent runs one turn for an inbound event.
func (b *Bot) HandleEvent(ctx context.Context, ev line.Event) error {
	b.logger.Info("inbound event", "kind", ev.Kind, "user", ev.UserID)

	switch ev.Kind {
	case line.EventText:
		return b.handleText(ctx, ev)
	case line.EventImage:
		return b.handleImage(ctx, ev)
	case line.EventSticker:
		return b.handleSticker(ctx, ev)
	case line.EventAudio:
		return b.handleAudio(ctx, ev)
	default:
		return fmt.Errorf("unsupported event kind %q", ev.Kind)
	}
}

// ---------- Turn handlers ----------

func (b *Bot) handleText(ctx context.Context, ev line.Event) error {
	// Discovery questions take their own path; under the legacy wire
	// format the pool payloads don't apply and the ordinary turn handles
	// the question like any other.
	if b.discovery != nil && b.wireFormat == WireFormatJSON && IsDiscoveryQuery(ev.Text) {
		return b.handleDiscovery(ctx, ev)
	}

	history, err := b.store.History(ctx, ev.UserID)
	if err != nil {
		b.logger.Error("loading session failed", "user", ev.UserID, "error", err)
		return b.dispatchFallback(ctx, ev.ReplyToken, FailureGeneric)
	}

	prompt := b.buildPrompt(history, ev.Text)
	contents := append(toContents(history), llm.UserText(prompt))

	raw, err := b.model.Complete(ctx, contents)
	if err != nil {
		return b.dispatchFallback(ctx, ev.ReplyToken, classifyFailure(err))
	}

	return b.finishTurn(ctx, ev, prompt, raw)
}

func (b *Bot) handleImage(ctx context.Context, ev line.Event) error {
	data, mimeType, err := b.fetcher.GetContent(ctx, ev.MessageID)
	if err != nil {
		b.logger.Warn("inbound image not downloadable", "message_id", ev.MessageID, "error", err)
		return b.dispatchFallback(ctx, ev.ReplyToken, FailureUnreadableMedia)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	history, err := b.store.History(ctx, ev.UserID)
	if err != nil {
		b.logger.Error("loading session failed", "user", ev.UserID, "error", err)
		return b.dispatchFallback(ctx, ev.ReplyToken, FailureGeneric)
	}

	contents := append(toContents(history), llm.UserMedia(imageTaskPrompt, mimeType, data))

	raw, err := b.model.CompleteVision(ctx, contents)
	if err != nil {
		return b.dispatchFallback(ctx, ev.ReplyToken, classifyFailure(err))
	}

	return b.finishTurn(ctx, ev, "傳了一張圖片給小雲看", raw)
}

func (b *Bot) handleSticker(ctx context.Context, ev line.Event) error {
	history, err := b.store.History(ctx, ev.UserID)
	if err != nil {
		b.logger.Error("loading session failed", "user", ev.UserID, "error", err)
		return b.dispatchFallback(ctx, ev.ReplyToken, FailureGeneric)
	}
	contents := toContents(history)

	var raw string
	var turnLabel string
	if data, fetchErr := b.fetcher.FetchStickerImage(ctx, ev.StickerID); fetchErr == nil {
		contents = append(contents, llm.UserMedia(stickerVisionTaskPrompt, "image/png", data))
		turnLabel = fmt.Sprintf("傳了貼圖讓小雲理解其意涵 (ID: %s-%s)", ev.PackageID, ev.StickerID)
		raw, err = b.model.CompleteVision(ctx, contents)
	} else {
		meaning := b.meanings.MeaningOf(ev.StickerID)
		b.logger.Debug("sticker image unavailable, using recorded meaning",
			"sticker_id", ev.StickerID, "meaning", meaning)
		contents = append(contents, llm.UserText(fmt.Sprintf(stickerMeaningTaskPrompt, meaning)))
		turnLabel = fmt.Sprintf("傳了意思大概是「%s」的貼圖給小雲", meaning)
		raw, err = b.model.Complete(ctx, contents)
	}
	if err != nil {
		return b.dispatchFallback(ctx, ev.ReplyToken, classifyFailure(err))
	}

	return b.finishTurn(ctx, ev, turnLabel, raw)
}

func (b *Bot) handleAudio(ctx context.Context, ev line.Event) error {
	data, mimeType, err := b.fetcher.GetContent(ctx, ev.MessageID)
	if err != nil {
		b.logger.Warn("inbound audio not downloadable", "message_id", ev.MessageID, "error", err)
		return b.dispatchFallback(ctx, ev.ReplyToken, FailureUnreadableMedia)
	}
	if mimeType == "" {
		mimeType = "audio/m4a"
	}

	history, err := b.store.History(ctx, ev.UserID)
	if err != nil {
		b.logger.Error("loading session failed", "user", ev.UserID, "error", err)
		return b.dispatchFallback(ctx, ev.ReplyToken, FailureGeneric)
	}

	contents := append(toContents(history), llm.UserMedia(audioTaskPrompt, mimeType, data))

	raw, err := b.model.CompleteVision(ctx, contents)
	if err != nil {
		return b.dispatchFallback(ctx, ev.ReplyToken, classifyFailure(err))
	}

	return b.finishTurn(ctx, ev, "傳了一段語音給小雲聽", raw)
}

// handleDiscovery answers a secret/discovery question from the pool or via
// the generator, then reuses the ordinary parse-and-dispatch tail.
func (b *Bot) handleDiscovery(ctx context.Context, ev line.Event) error {
	payload, useGenerator := b.discovery.Next(ev.UserID)

	if useGenerator {
		history, err := b.store.History(ctx, ev.UserID)
		if err != nil {
			b.logger.Error("loading session failed", "user", ev.UserID, "error", err)
			return b.dispatchFallback(ctx, ev.ReplyToken, FailureGeneric)
		}
		contents := append(toContents(history), llm.UserText(generatorPrompt+"\n\n使用者說："+ev.Text))

		raw, err := b.model.Complete(ctx, contents)
		if err != nil {
			return b.dispatchFallback(ctx, ev.ReplyToken, classifyFailure(err))
		}
		payload = b.discovery.EnsureImageTheme(raw)
	}

	return b.finishTurn(ctx, ev, ev.Text, payload)
}

// ---------- Turn tail ----------

// finishTurn records the exchange and runs parse → assemble → dispatch.
// A response the configured parser rejects outright becomes the canned
// confusion reply via the assembler's empty-input fallback.
func (b *Bot) finishTurn(ctx context.Context, ev line.Event, userTurn, raw string) error {
	if err := b.store.Append(ctx, ev.UserID,
		session.Entry{Role: "user", Text: userTurn},
		session.Entry{Role: "model", Text: raw},
	); err != nil {
		b.logger.Error("recording exchange failed", "user", ev.UserID, "error", err)
	}

	var directives []directive.Directive
	if b.wireFormat == WireFormatLegacy {
		directives = b.parser.ParseLegacy(raw)
	} else {
		var err error
		directives, err = b.parser.ParseJSON(raw)
		if err != nil {
			b.logger.Warn("model response failed to parse, sending confusion reply",
				"user", ev.UserID, "error", err)
			directives = nil
		}
	}

	return b.dispatcher.DispatchDirectives(ctx, ev.ReplyToken, directives)
}

// dispatchFallback sends the canned reply for a failure kind.
func (b *Bot) dispatchFallback(ctx context.Context, replyToken string, kind FailureKind) error {
	b.logger.Warn("turn degraded to canned reply", "failure", kind.String())
	return b.dispatcher.DispatchDirectives(ctx, replyToken, fallbackDirectives(kind))
}

// classifyFailure maps a model error to its failure kind.
func classifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, llm.ErrPolicyBlocked):
		return FailurePolicy
	case errors.Is(err, llm.ErrTimeout):
		return FailureTimeout
	case errors.Is(err, llm.ErrAPIStatus):
		return FailureNetwork
	default:
		return FailureGeneric
	}
}

// buildPrompt concatenates the contextual reminder, the time-of-day hint
// and the raw user message for an ordinary text turn.
func (b *Bot) buildPrompt(history []session.Entry, userMessage string) string {
	var parts []string

	if reminder := ContextualReminder(lastModelTurn(history), userMessage); reminder != "" {
		parts = append(parts, reminder)
	}
	parts = append(parts, TimeOfDayHint(b.now()))
	parts = append(parts, userMessage)

	return strings.Join(parts, "\n")
}

// lastModelTurn returns the bot's most recent response text, skipping the
// seeded opening.
func lastModelTurn(history []session.Entry) string {
	for i := len(history) - 1; i >= 2; i-- {
		if history[i].Role == "model" {
			return history[i].Text
		}
	}
	return ""
}

// toContents converts session entries to model wire contents.
func toContents(history []session.Entry) []llm.Content {
	contents := make([]llm.Content, 0, len(history)+1)
	for _, e := range history {
		contents = append(contents, llm.Content{
			Role:  e.Role,
			Parts: []llm.Part{{Text: e.Text}},
		})
	}
	return contents
}
