package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/bot"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/dispatch"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/imagesearch"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/llm"
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/resolve"
)

// resolveConfig loads the configuration, honoring the global --config flag
// and falling back to the default search path. Returns the loaded config
// and the path it came from.
func resolveConfig(cmd *cobra.Command) (*bot.Config, string, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = bot.FindConfigFile()
	}
	if path == "" {
		return nil, "", fmt.Errorf("no config file found — run 'xiaoyun config init' first")
	}

	cfg, err := bot.LoadConfigFromFile(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// buildLogger configures slog from the logging section, with --verbose
// forcing debug level.
func buildLogger(cmd *cobra.Command, cfg *bot.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}

// buildAssembler loads the asset tables and wires the media resolvers
// into a message assembler. The sticker resolver doubles as the lookup
// for inbound sticker meanings, so it is returned alongside.
func buildAssembler(cfg *bot.Config, model *llm.Client, logger *slog.Logger) (*dispatch.Assembler, *resolve.StickerResolver, error) {
	tables, err := resolve.LoadTables(cfg.Assets.TablesPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("loading asset tables: %w", err)
	}

	var providers []imagesearch.Searcher
	if cfg.Search.GoogleAPIKey != "" && cfg.Search.GoogleEngineID != "" {
		providers = append(providers, imagesearch.NewGoogleCSE(cfg.Search.GoogleAPIKey, cfg.Search.GoogleEngineID))
	}
	if cfg.Search.PexelsAPIKey != "" {
		providers = append(providers, imagesearch.NewPexels(cfg.Search.PexelsAPIKey))
	}
	chain := imagesearch.NewChain(logger, providers...)

	stickers := resolve.NewStickerResolver(tables, nil, logger)
	sounds := resolve.NewSoundResolver(tables, cfg.Audio.BaseURL, logger)
	images := resolve.NewImageResolver(chain, imagesearch.NewFetcher(), model, model, cfg.Search.MaxCandidates, logger)

	return dispatch.NewAssembler(stickers, sounds, images, tables, logger), stickers, nil
}
