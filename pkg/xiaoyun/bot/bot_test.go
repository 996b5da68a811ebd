package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/directive"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/line"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/llm"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/session"
)

// fakeModel returns a programmed response or error and records the last
// request contents.
type fakeModel struct {
	response     string
	err          error
	lastContents []llm.Content
	visionCalls  int
}

func (m *fakeModel) Complete(ctx context.Context, contents []llm.Content) (string, error) {
	m.lastContents = contents
	return m.response, m.err
}

func (m *fakeModel) CompleteVision(ctx context.Context, contents []llm.Content) (string, error) {
	m.lastContents = contents
	m.visionCalls++
	return m.response, m.err
}

// fakeDispatcher records the directive lists handed to it.
type fakeDispatcher struct {
	calls [][]directive.Directive
}

func (d *fakeDispatcher) DispatchDirectives(ctx context.Context, replyToken string, directives []directive.Directive) error {
	d.calls = append(d.calls, directives)
	return nil
}

type fakeFetcher struct {
	content    []byte
	mimeType   string
	contentErr error
	sticker    []byte
	stickerErr error
}

func (f *fakeFetcher) GetContent(ctx context.Context, messageID string) ([]byte, string, error) {
	return f.content, f.mimeType, f.contentErr
}

func (f *fakeFetcher) FetchStickerImage(ctx context.Context, stickerID string) ([]byte, error) {
	return f.sticker, f.stickerErr
}

type fakeMeanings struct{}

func (fakeMeanings) MeaningOf(stickerID string) string { return "謝謝你！" }

type botFixture struct {
	bot        *Bot
	model      *fakeModel
	dispatcher *fakeDispatcher
	fetcher    *fakeFetcher
	store      session.Store
}

func newBotFixture(t *testing.T, wireFormat string) *botFixture {
	t.Helper()
	model := &fakeModel{}
	dispatcher := &fakeDispatcher{}
	fetcher := &fakeFetcher{content: []byte{0xFF, 0xD8}, mimeType: "image/jpeg"}
	store := session.NewMemoryStore(SeedHistory(wireFormat), nil)
	parser := directive.NewParser(nil)
	discovery := NewDiscovery(DiscoveryConfig{GeneratorChance: 0}, parser, fixedRand(), nil)

	return &botFixture{
		bot:        New(store, model, fetcher, dispatcher, parser, discovery, fakeMeanings{}, wireFormat, nil),
		model:      model,
		dispatcher: dispatcher,
		fetcher:    fetcher,
		store:      store,
	}
}

func textEvent(text string) line.Event {
	return line.Event{Kind: line.EventText, UserID: "u1", ReplyToken: "rt", Text: text}
}

func (f *botFixture) lastDispatch(t *testing.T) []directive.Directive {
	t.Helper()
	if len(f.dispatcher.calls) == 0 {
		t.Fatal("nothing dispatched")
	}
	return f.dispatcher.calls[len(f.dispatcher.calls)-1]
}

func TestTextTurnParsesAndDispatches(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.model.response = `[{"type":"text","content":"Meow~"},{"type":"sticker","keyword":"happy"}]`

	if err := f.bot.HandleEvent(context.Background(), textEvent("hello")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := f.lastDispatch(t)
	if len(got) != 2 {
		t.Fatalf("dispatched %d directives, want 2", len(got))
	}
	if got[0].Type != directive.TypeText || got[0].Content != "Meow~" {
		t.Errorf("first directive = %+v", got[0])
	}
	if got[1].Type != directive.TypeSticker || got[1].Keyword != "happy" {
		t.Errorf("second directive = %+v", got[1])
	}

	// The exchange was recorded.
	history, err := f.store.History(context.Background(), "u1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("history has %d entries, want seed + exchange = 4", len(history))
	}
	if history[3].Text != f.model.response {
		t.Error("raw model response not recorded")
	}
}

func TestGarbageResponseDispatchesEmptyList(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.model.response = "not json at all"

	if err := f.bot.HandleEvent(context.Background(), textEvent("hello")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	// The confusion reply comes from the assembler's empty-input fallback;
	// the controller must not auto-retry the legacy parser, which would
	// turn the garbage into a text directive.
	if got := f.lastDispatch(t); len(got) != 0 {
		t.Errorf("garbage dispatched as %d directives: %+v", len(got), got)
	}
}

func TestPolicyBlockGetsDistinctReply(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.model.err = fmt.Errorf("%w: SAFETY", llm.ErrPolicyBlocked)

	if err := f.bot.HandleEvent(context.Background(), textEvent("forbidden topic")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	policyReply := f.lastDispatch(t)
	if len(policyReply) == 0 {
		t.Fatal("no fallback dispatched for policy block")
	}

	f.model.err = errors.New("connection refused")
	if err := f.bot.HandleEvent(context.Background(), textEvent("hello")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	genericReply := f.lastDispatch(t)

	if policyReply[0].Content == genericReply[0].Content {
		t.Error("policy-block reply is not distinct from the generic failure reply")
	}
}

func TestTimeoutGetsSleepyReply(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.model.err = fmt.Errorf("%w after 30s", llm.ErrTimeout)

	if err := f.bot.HandleEvent(context.Background(), textEvent("hello")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := f.lastDispatch(t)
	want := fallbackDirectives(FailureTimeout)
	if got[0].Content != want[0].Content {
		t.Errorf("timeout reply = %q, want sleepy reply %q", got[0].Content, want[0].Content)
	}
}

func TestHTTPErrorMapsToNetworkReply(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.model.err = fmt.Errorf("%w: status 500: internal", llm.ErrAPIStatus)

	if err := f.bot.HandleEvent(context.Background(), textEvent("hello")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := f.lastDispatch(t)
	want := fallbackDirectives(FailureNetwork)
	if got[0].Content != want[0].Content {
		t.Errorf("network reply = %q, want %q", got[0].Content, want[0].Content)
	}
}

func TestLegacyWireFormatParsesTags(t *testing.T) {
	f := newBotFixture(t, WireFormatLegacy)
	f.model.response = "咪～ [STICKER:開心] [SPLIT] 呼嚕嚕"

	if err := f.bot.HandleEvent(context.Background(), textEvent("hello")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := f.lastDispatch(t)
	if len(got) != 3 {
		t.Fatalf("dispatched %d directives, want 3: %+v", len(got), got)
	}
	if got[1].Type != directive.TypeSticker || got[1].Keyword != "開心" {
		t.Errorf("sticker directive = %+v", got[1])
	}
}

func TestImageTurnUsesVisionCall(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.model.response = `[{"type":"text","content":"哇！好漂亮的照片！"}]`

	ev := line.Event{Kind: line.EventImage, UserID: "u1", ReplyToken: "rt", MessageID: "m1"}
	if err := f.bot.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if f.model.visionCalls != 1 {
		t.Errorf("vision calls = %d, want 1", f.model.visionCalls)
	}
	last := f.model.lastContents[len(f.model.lastContents)-1]
	if len(last.Parts) != 2 || last.Parts[1].InlineData == nil {
		t.Fatalf("latest turn lacks inline image data: %+v", last)
	}
	if last.Parts[1].InlineData.MIMEType != "image/jpeg" {
		t.Errorf("mime type = %q", last.Parts[1].InlineData.MIMEType)
	}
}

func TestUnreadableImageGetsMediaFallback(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.fetcher.contentErr = errors.New("status 404")

	ev := line.Event{Kind: line.EventImage, UserID: "u1", ReplyToken: "rt", MessageID: "m1"}
	if err := f.bot.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := f.lastDispatch(t)
	want := fallbackDirectives(FailureUnreadableMedia)
	if got[0].Content != want[0].Content {
		t.Errorf("media fallback = %q, want %q", got[0].Content, want[0].Content)
	}
}

func TestStickerTurnFallsBackToMeaning(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.fetcher.stickerErr = errors.New("not on CDN")
	f.model.response = `[{"type":"text","content":"咪！不客氣！"}]`

	ev := line.Event{Kind: line.EventSticker, UserID: "u1", ReplyToken: "rt", PackageID: "11537", StickerID: "52002734"}
	if err := f.bot.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if f.model.visionCalls != 0 {
		t.Error("vision call made despite CDN miss")
	}
	last := f.model.lastContents[len(f.model.lastContents)-1]
	if !strings.Contains(last.Parts[0].Text, "謝謝你！") {
		t.Errorf("meaning prompt missing recorded meaning: %q", last.Parts[0].Text)
	}
}

func TestStickerTurnPrefersVision(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.fetcher.sticker = []byte{0x89, 0x50}
	f.model.response = `[{"type":"text","content":"咪！"}]`

	ev := line.Event{Kind: line.EventSticker, UserID: "u1", ReplyToken: "rt", PackageID: "11537", StickerID: "52002734"}
	if err := f.bot.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if f.model.visionCalls != 1 {
		t.Errorf("vision calls = %d, want 1", f.model.visionCalls)
	}
}

func TestDiscoveryQuestionUsesPool(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)

	if err := f.bot.HandleEvent(context.Background(), textEvent("小雲你有什麼秘密嗎？")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := f.lastDispatch(t)
	hasImage := false
	for _, d := range got {
		if d.IsImage() {
			hasImage = true
		}
	}
	if !hasImage {
		t.Errorf("discovery reply carries no image: %+v", got)
	}
	// The pool path never touches the model.
	if f.model.lastContents != nil {
		t.Error("pool-sourced discovery called the model")
	}
}

func TestDiscoveryGeneratorInsertsMissingImage(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.bot.discovery = NewDiscovery(DiscoveryConfig{GeneratorChance: 1}, directive.NewParser(nil), fixedRand(), nil)
	f.model.response = `[{"type":"text","content":"小雲今天發現了一個小東西！"}]`

	if err := f.bot.HandleEvent(context.Background(), textEvent("有什麼新發現嗎？")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := f.lastDispatch(t)
	hasImage := false
	for _, d := range got {
		if d.IsImage() {
			hasImage = true
		}
	}
	if !hasImage {
		t.Errorf("generated discovery shipped without an image: %+v", got)
	}
}

func TestPromptCarriesReminderAndTimeHint(t *testing.T) {
	f := newBotFixture(t, WireFormatJSON)
	f.model.response = `[{"type":"text","content":"咪！"}]`

	// First exchange establishes the bot's hunger.
	f.model.response = `[{"type":"text","content":"咪...小雲肚子餓了..."}]`
	if err := f.bot.HandleEvent(context.Background(), textEvent("你還好嗎")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	f.model.response = `[{"type":"text","content":"罐罐！！"}]`
	if err := f.bot.HandleEvent(context.Background(), textEvent("要吃罐罐嗎")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	last := f.model.lastContents[len(f.model.lastContents)-1]
	prompt := last.Parts[0].Text
	if !strings.Contains(prompt, "情境提示") {
		t.Errorf("prompt lacks contextual reminder: %q", prompt)
	}
	if !strings.Contains(prompt, "氛圍參考") {
		t.Errorf("prompt lacks time-of-day hint: %q", prompt)
	}
	if !strings.Contains(prompt, "要吃罐罐嗎") {
		t.Errorf("prompt lacks the user message: %q", prompt)
	}
}
