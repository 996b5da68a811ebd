package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/directive"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/line"
)

type recordingSink struct {
	calls    [][]line.Message
	failures int
}

func (s *recordingSink) Reply(_ context.Context, _ string, messages []line.Message) error {
	s.calls = append(s.calls, messages)
	if len(s.calls) <= s.failures {
		return fmt.Errorf("sink unavailable")
	}
	return nil
}

func TestDispatchDirectives(t *testing.T) {
	// A text and a sticker dispatch as-is.
	sink := &recordingSink{}
	d := NewDispatcher(newTestAssembler(stubImages{}), sink, nil)

	err := d.DispatchDirectives(context.Background(), "rt", []directive.Directive{
		directive.Text("Meow~"),
		directive.Sticker("happy"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.calls) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(sink.calls))
	}
	sent := sink.calls[0]
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	if text := sent[0].(line.TextMessage); text.Text != "Meow~" {
		t.Errorf("unexpected text %q", text.Text)
	}
	if sticker := sent[1].(line.StickerMessage); sticker.StickerID != "stk-happy" {
		t.Errorf("unexpected sticker %+v", sticker)
	}
}

func TestDispatchFallbackOnSinkFailure(t *testing.T) {
	t.Run("one failure triggers exactly one fallback", func(t *testing.T) {
		sink := &recordingSink{failures: 1}
		d := NewDispatcher(newTestAssembler(stubImages{}), sink, nil)

		err := d.Dispatch(context.Background(), "rt", []line.Message{line.TextMessage{Text: "hi"}})
		if err != nil {
			t.Fatalf("fallback succeeded, expected nil error, got %v", err)
		}
		if len(sink.calls) != 2 {
			t.Fatalf("expected primary + fallback delivery, got %d calls", len(sink.calls))
		}
		if len(sink.calls[1]) == 0 || sink.calls[1][0].Kind() != line.KindText {
			t.Errorf("fallback should lead with a text message: %+v", sink.calls[1])
		}
	})

	t.Run("double failure gives up with an error", func(t *testing.T) {
		sink := &recordingSink{failures: 2}
		d := NewDispatcher(newTestAssembler(stubImages{}), sink, nil)

		err := d.Dispatch(context.Background(), "rt", []line.Message{line.TextMessage{Text: "hi"}})
		if err == nil {
			t.Fatal("expected error after double failure")
		}
		if len(sink.calls) != 2 {
			t.Fatalf("no further retries allowed, got %d calls", len(sink.calls))
		}
	})
}
