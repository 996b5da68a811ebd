package dispatch

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/directive"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/line"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/resolve"
)

// ---------- fakes ----------

type stubStickers struct{}

func (stubStickers) Resolve(keyword string) resolve.StickerAsset {
	return resolve.StickerAsset{PackageID: "pkg", StickerID: "stk-" + keyword}
}

type stubSounds struct {
	known map[string]resolve.Sound
}

func (s stubSounds) Resolve(keyword string) (resolve.Sound, bool) {
	sound, ok := s.known[keyword]
	return sound, ok
}

type stubImages struct {
	resolved map[string]string
}

func (s stubImages) Resolve(_ context.Context, theme string) (string, bool) {
	url, ok := s.resolved[theme]
	return url, ok
}

type stubTable struct {
	images     map[string]string
	defaultURL string
}

func (s stubTable) ImageURL(key string) (string, bool) {
	url, ok := s.images[key]
	return url, ok
}

func (s stubTable) DefaultImageURL() (string, bool) {
	return s.defaultURL, s.defaultURL != ""
}

func newTestAssembler(images stubImages) *Assembler {
	return NewAssembler(
		stubStickers{},
		stubSounds{known: map[string]resolve.Sound{
			"purr": {URL: "https://audio/purr.m4a", DurationMS: 3200},
		}},
		images,
		stubTable{
			images:     map[string]string{"self_portrait": "https://img/self.jpg"},
			defaultURL: "https://img/default.jpg",
		},
		nil,
	)
}

func countKinds(messages []line.Message) map[line.MessageKind]int {
	counts := map[line.MessageKind]int{}
	for _, m := range messages {
		counts[m.Kind()]++
	}
	return counts
}

// ---------- properties ----------

func TestCapInvariant(t *testing.T) {
	// Output is always 1..5 messages with at most one image, one
	// sticker, one sound, regardless of input length.
	a := newTestAssembler(stubImages{resolved: map[string]string{"cat": "https://img/cat.jpg"}})

	for _, n := range []int{0, 1, 3, 5, 8, 20, 100} {
		t.Run(fmt.Sprintf("input length %d", n), func(t *testing.T) {
			var directives []directive.Directive
			for i := 0; i < n; i++ {
				switch i % 4 {
				case 0:
					directives = append(directives, directive.Text(fmt.Sprintf("t%d", i)))
				case 1:
					directives = append(directives, directive.Sticker("開心"))
				case 2:
					directives = append(directives, directive.ImageTheme("cat"))
				case 3:
					directives = append(directives, directive.MeowSound("purr"))
				}
			}

			out := a.Assemble(context.Background(), directives)
			if len(out) < 1 || len(out) > line.MaxReplyMessages {
				t.Fatalf("output size %d outside [1,%d]", len(out), line.MaxReplyMessages)
			}
			counts := countKinds(out)
			if counts[line.KindImage] > 1 || counts[line.KindSticker] > 1 || counts[line.KindAudio] > 1 {
				t.Errorf("quota violated: %v", counts)
			}
		})
	}
}

func TestNoSilentDropToZero(t *testing.T) {
	// Even an empty directive list produces at least one message.
	a := newTestAssembler(stubImages{})
	out := a.Assemble(context.Background(), nil)
	if len(out) == 0 {
		t.Fatal("empty input produced zero messages")
	}
	if out[0].Kind() != line.KindText {
		t.Errorf("fallback should lead with text, got %v", out[0].Kind())
	}
}

func TestMergeCorrectness(t *testing.T) {
	// Seven texts merge into exactly five messages, the fifth being
	// "T5 ... T6 ... T7".
	a := newTestAssembler(stubImages{})
	var directives []directive.Directive
	for i := 1; i <= 7; i++ {
		directives = append(directives, directive.Text(fmt.Sprintf("T%d", i)))
	}

	out := a.Assemble(context.Background(), directives)
	if len(out) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(out))
	}
	for i := 0; i < 4; i++ {
		text, ok := out[i].(line.TextMessage)
		if !ok || text.Text != fmt.Sprintf("T%d", i+1) {
			t.Errorf("slot %d: expected T%d, got %+v", i, i+1, out[i])
		}
	}
	fifth := out[4].(line.TextMessage)
	if fifth.Text != "T5 ... T6 ... T7" {
		t.Errorf("fifth slot: expected %q, got %q", "T5 ... T6 ... T7", fifth.Text)
	}
}

func TestMergeStopsAtNonText(t *testing.T) {
	// Canonical reading of the mixed-run edge case: concatenation stops at
	// the first non-text and everything after it is discarded.
	a := newTestAssembler(stubImages{})
	directives := []directive.Directive{
		directive.Text("T1"), directive.Text("T2"), directive.Text("T3"),
		directive.Text("T4"), directive.Text("T5"), directive.Text("T6"),
		directive.Sticker("開心"), directive.Text("T7"),
	}

	out := a.Assemble(context.Background(), directives)
	if len(out) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(out))
	}
	fifth := out[4].(line.TextMessage)
	if fifth.Text != "T5 ... T6" {
		t.Errorf("expected merge to stop before the sticker, got %q", fifth.Text)
	}
}

func TestNonTextFifthSlot(t *testing.T) {
	a := newTestAssembler(stubImages{})
	directives := []directive.Directive{
		directive.Text("T1"), directive.Text("T2"), directive.Text("T3"),
		directive.Text("T4"), directive.Sticker("開心"), directive.Text("T5"),
	}

	out := a.Assemble(context.Background(), directives)
	if len(out) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(out))
	}
	if out[4].Kind() != line.KindSticker {
		t.Errorf("expected the sticker in slot 5, got %v", out[4].Kind())
	}
}

func TestTypePriorityUnderCap(t *testing.T) {
	// The second image is dropped (not substituted); both texts and the
	// sticker survive.
	a := newTestAssembler(stubImages{resolved: map[string]string{
		"x": "https://img/x.jpg",
		"y": "https://img/y.jpg",
	}})
	directives := []directive.Directive{
		directive.Text("a"),
		directive.ImageTheme("x"),
		directive.ImageTheme("y"),
		directive.Sticker("s"),
		directive.Text("b"),
	}

	out := a.Assemble(context.Background(), directives)
	if len(out) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(out), out)
	}
	img := out[1].(line.ImageMessage)
	if img.URL != "https://img/x.jpg" {
		t.Errorf("expected the first image to win, got %q", img.URL)
	}
	counts := countKinds(out)
	if counts[line.KindImage] != 1 || counts[line.KindSticker] != 1 || counts[line.KindText] != 2 {
		t.Errorf("unexpected kind mix: %v", counts)
	}
}

func TestImageFallbackText(t *testing.T) {
	// An unresolvable theme becomes a text message naming the theme.
	a := newTestAssembler(stubImages{})
	out := a.Assemble(context.Background(), []directive.Directive{
		directive.ImageTheme("a sleeping cat"),
	})

	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	text, ok := out[0].(line.TextMessage)
	if !ok {
		t.Fatalf("expected text substitute, got %T", out[0])
	}
	if !strings.Contains(text.Text, "a sleeping cat") {
		t.Errorf("substitute text should name the theme: %q", text.Text)
	}
}

func TestImageFallbackLeavesQuotaOpen(t *testing.T) {
	// A failed theme does not consume the image quota: a later image_key
	// can still produce an image.
	a := newTestAssembler(stubImages{})
	out := a.Assemble(context.Background(), []directive.Directive{
		directive.ImageTheme("unresolvable"),
		directive.ImageKey("self_portrait"),
	})

	counts := countKinds(out)
	if counts[line.KindImage] != 1 {
		t.Fatalf("expected the image_key to still resolve: %v", counts)
	}
}

func TestImageKeyFallsBackToDefault(t *testing.T) {
	a := newTestAssembler(stubImages{})
	out := a.Assemble(context.Background(), []directive.Directive{
		directive.ImageKey("nonexistent"),
	})
	img, ok := out[0].(line.ImageMessage)
	if !ok {
		t.Fatalf("expected default image, got %T", out[0])
	}
	if img.URL != "https://img/default.jpg" {
		t.Errorf("expected default image URL, got %q", img.URL)
	}
}

func TestSoundMissIsDropped(t *testing.T) {
	a := newTestAssembler(stubImages{})
	out := a.Assemble(context.Background(), []directive.Directive{
		directive.Text("hello"),
		directive.MeowSound("unknown_sound"),
	})
	if len(out) != 1 || out[0].Kind() != line.KindText {
		t.Errorf("sound miss should drop silently, got %+v", out)
	}
}

func TestCleanTrailingArtifacts(t *testing.T) {
	// Cleanup is idempotent.
	tests := []struct {
		in, want string
	}{
		{"hello `", "hello"},
		{"hello", "hello"},
		{"hello\\", "hello"},
		{"hello ``\\ ", "hello"},
		{"呼嚕嚕～", "呼嚕嚕～"},
		{"`", ""},
	}
	for _, tt := range tests {
		if got := CleanTrailingArtifacts(tt.in); got != tt.want {
			t.Errorf("CleanTrailingArtifacts(%q) = %q, want %q", tt.in, got, tt.want)
		}
		// Idempotence.
		if got := CleanTrailingArtifacts(CleanTrailingArtifacts(tt.in)); got != tt.want {
			t.Errorf("cleanup not idempotent for %q", tt.in)
		}
	}
}
