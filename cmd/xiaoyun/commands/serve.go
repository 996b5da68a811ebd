package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/bot"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/directive"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/dispatch"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/gateway"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/line"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/llm"
)

// newServeCmd creates the `xiaoyun serve` command that starts the webhook
// server.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long: `Start the bot as a daemon: serves the LINE webhook, the admin
endpoints and the static audio files, and sweeps idle sessions.

Examples:
  xiaoyun serve
  xiaoyun serve --config ./config.yaml
  xiaoyun serve --listen :9000`,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "bind address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, configPath, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := buildLogger(cmd, cfg)

	bot.ResolveCredentials(cfg, logger)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
		cfg.Gateway.Listen = addr
	}

	// ── Model and media pipeline ──
	model := llm.NewClient(cfg.LLM.Config, logger)

	assembler, stickers, err := buildAssembler(cfg, model, logger)
	if err != nil {
		return err
	}

	lineClient := line.NewClient(cfg.Line.ChannelToken, logger)
	dispatcher := dispatch.NewDispatcher(assembler, lineClient, logger)

	// ── Sessions ──
	seed := bot.SeedHistory(cfg.LLM.WireFormat)
	store, err := bot.NewSessionStore(cfg.Store, seed, logger)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	sweeper, err := bot.StartSweeper(cfg.Store, store, logger)
	if err != nil {
		return fmt.Errorf("starting idle sweeper: %w", err)
	}

	// ── Turn controller ──
	parser := directive.NewParser(logger)
	discovery := bot.NewDiscovery(cfg.Discovery, parser, nil, logger)
	b := bot.New(store, model, lineClient, dispatcher, parser, discovery, stickers, cfg.LLM.WireFormat, logger)

	// ── HTTP surface ──
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := gateway.NewServer(cfg.Line.ChannelSecret, cfg.Gateway.AdminToken, cfg.Audio.Dir, b, store, logger)

	logger.Info("xiaoyun running",
		"address", cfg.Gateway.Listen,
		"config", configPath,
		"wire_format", cfg.LLM.WireFormat,
		"store", cfg.Store.Type,
	)

	err = server.ListenAndServe(ctx, cfg.Gateway.Listen)

	if sweeper != nil {
		sweeperCtx := sweeper.Stop()
		<-sweeperCtx.Done()
	}

	logger.Info("shutdown complete")
	return err
}
