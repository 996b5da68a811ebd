package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/bot"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/directive"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/dispatch"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/line"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/llm"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/session"
)

// consoleUserID is the session key for the local REPL conversation.
const consoleUserID = "console"

// newChatCmd creates the `xiaoyun chat` command: a local conversation
// with the cat, without LINE in the loop.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the cat from the terminal",
		Long: `Run a conversation turn locally. The full pipeline is exercised
(persona prompt, directive parsing, media resolution) but replies are
printed to the terminal instead of sent through LINE.

Examples:
  xiaoyun chat "小雲在嗎？"
  xiaoyun chat  # interactive mode`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
	return cmd
}

// consoleSink prints assembled messages instead of delivering them.
type consoleSink struct {
	out io.Writer
}

func (s *consoleSink) Reply(_ context.Context, _ string, messages []line.Message) error {
	for _, msg := range messages {
		switch m := msg.(type) {
		case line.TextMessage:
			fmt.Fprintf(s.out, "小雲> %s\n", m.Text)
		case line.StickerMessage:
			fmt.Fprintf(s.out, "小雲> [貼圖 %s/%s]\n", m.PackageID, m.StickerID)
		case line.ImageMessage:
			fmt.Fprintf(s.out, "小雲> [圖片 %s]\n", m.URL)
		case line.AudioMessage:
			fmt.Fprintf(s.out, "小雲> [叫聲 %s]\n", m.URL)
		}
	}
	return nil
}

// noContent stands in for the media fetcher; the terminal cannot send
// images or stickers.
type noContent struct{}

func (noContent) GetContent(context.Context, string) ([]byte, string, error) {
	return nil, "", fmt.Errorf("no media content in console mode")
}

func (noContent) FetchStickerImage(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("no sticker images in console mode")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := buildLogger(cmd, cfg)

	bot.ResolveCredentials(cfg, logger)
	if cfg.LLM.APIKey == "" || bot.IsEnvReference(cfg.LLM.APIKey) {
		return fmt.Errorf("no model API key configured — run 'xiaoyun config set-key'")
	}

	model := llm.NewClient(cfg.LLM.Config, logger)

	assembler, stickers, err := buildAssembler(cfg, model, logger)
	if err != nil {
		return err
	}
	dispatcher := dispatch.NewDispatcher(assembler, &consoleSink{out: cmd.OutOrStdout()}, logger)

	// Console chats are throwaway; always keep them in memory.
	seed := bot.SeedHistory(cfg.LLM.WireFormat)
	store := session.NewMemoryStore(seed, logger)
	defer store.Close()

	parser := directive.NewParser(logger)
	discovery := bot.NewDiscovery(cfg.Discovery, parser, nil, logger)
	b := bot.New(store, model, noContent{}, dispatcher, parser, discovery, stickers, cfg.LLM.WireFormat, logger)

	ctx := cmd.Context()

	if len(args) > 0 {
		return sendTurn(ctx, b, args[0])
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal; pass the message as an argument")
	}
	return runREPL(ctx, b, store)
}

func sendTurn(ctx context.Context, b *bot.Bot, text string) error {
	ev := line.Event{
		Kind:       line.EventText,
		UserID:     consoleUserID,
		ReplyToken: consoleUserID,
		Text:       text,
	}
	return b.HandleEvent(ctx, ev)
}

func runREPL(ctx context.Context, b *bot.Bot, store session.Store) error {
	rl, err := readline.New("你> ")
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("和小雲聊天（/clear 清除記憶，/exit 離開）")

	for {
		input, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return nil
		}
		input = strings.TrimSpace(input)

		switch {
		case input == "":
			continue
		case input == "/exit" || input == "/quit":
			return nil
		case input == "/clear":
			if err := store.Clear(ctx, consoleUserID); err != nil {
				fmt.Printf("清除失敗: %v\n", err)
			} else {
				fmt.Println("記憶已清除，小雲又忘光光了。")
			}
			continue
		}

		if err := sendTurn(ctx, b, input); err != nil {
			fmt.Printf("錯誤: %v\n", err)
		}
	}
}
