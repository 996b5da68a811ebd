// dispatcher.go hands the assembled message list to the delivery sink. A
// sink failure gets exactly one minimal fallback attempt; a second failure
// ends the turn silently from the user's side but loudly in the logs. No
// retry loop: a flaky channel must not cause duplicate-message storms.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/directive"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/line"
)

// Sink delivers an ordered message list for a reply handle.
type Sink interface {
	Reply(ctx context.Context, replyToken string, messages []line.Message) error
}

// Dispatcher sends assembled messages through the sink.
type Dispatcher struct {
	assembler *Assembler
	sink      Sink
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over the assembler and sink.
func NewDispatcher(assembler *Assembler, sink Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		assembler: assembler,
		sink:      sink,
		logger:    logger.With("component", "dispatcher"),
	}
}

// DispatchDirectives assembles and delivers a directive list.
func (d *Dispatcher) DispatchDirectives(ctx context.Context, replyToken string, directives []directive.Directive) error {
	return d.Dispatch(ctx, replyToken, d.assembler.Assemble(ctx, directives))
}

// Dispatch delivers an already-assembled message list.
func (d *Dispatcher) Dispatch(ctx context.Context, replyToken string, messages []line.Message) error {
	err := d.sink.Reply(ctx, replyToken, messages)
	if err == nil {
		return nil
	}

	d.logger.Error("delivery failed, attempting minimal fallback", "error", err, "messages", len(messages))

	fallback := d.minimalFallback()
	if fbErr := d.sink.Reply(ctx, replyToken, fallback); fbErr != nil {
		d.logger.Error("fallback delivery also failed, giving up", "error", fbErr)
		return fmt.Errorf("delivery failed twice: %w", err)
	}
	return nil
}

// minimalFallback is the smallest in-character "something went wrong"
// reply, used only after the primary delivery failed.
func (d *Dispatcher) minimalFallback() []line.Message {
	asset := d.assembler.stickers.Resolve("哭哭")
	return []line.Message{
		line.TextMessage{Text: "咪！小雲好像卡住了...再試一次好不好？"},
		line.StickerMessage{PackageID: asset.PackageID, StickerID: asset.StickerID},
	}
}
