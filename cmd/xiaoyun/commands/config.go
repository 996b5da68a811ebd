package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/bot"
)

// newConfigCmd creates the `xiaoyun config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the bot configuration",
		Long: `Manage the xiaoyun configuration file and stored credentials.

Examples:
  xiaoyun config init
  xiaoyun config show
  xiaoyun config set-key
  xiaoyun config set-token`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigSetSecretCmd("set-key", "Store the model API key in the OS keyring", bot.KeyringLLMKey, "Model API key: "),
		newConfigSetSecretCmd("set-token", "Store the LINE channel token in the OS keyring", bot.KeyringChannelToken, "Channel access token: "),
		newConfigSetSecretCmd("set-secret", "Store the LINE channel secret in the OS keyring", bot.KeyringChannelSecret, "Channel secret: "),
	)

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Root().PersistentFlags().GetString("config")
			if path == "" {
				path = "config.yaml"
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}

			if err := bot.SaveConfigToFile(bot.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Printf("Configuration written to %s\n", path)
			fmt.Println("Set credentials via environment variables or 'xiaoyun config set-key'.")
			return nil
		},
	}
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			// Secrets never hit stdout, only where they come from.
			redacted := *cfg
			redacted.Line.ChannelSecret = redactSecret(cfg.Line.ChannelSecret)
			redacted.Line.ChannelToken = redactSecret(cfg.Line.ChannelToken)
			redacted.LLM.APIKey = redactSecret(cfg.LLM.APIKey)
			redacted.Search.GoogleAPIKey = redactSecret(cfg.Search.GoogleAPIKey)
			redacted.Search.PexelsAPIKey = redactSecret(cfg.Search.PexelsAPIKey)
			redacted.Gateway.AdminToken = redactSecret(cfg.Gateway.AdminToken)

			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("rendering config: %w", err)
			}
			fmt.Printf("# %s\n%s", path, data)
			return nil
		},
	}
}

// newConfigSetSecretCmd builds a subcommand that prompts for one secret
// and stores it in the OS keyring.
func newConfigSetSecretCmd(use, short, keyringName, prompt string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(_ *cobra.Command, _ []string) error {
			if !bot.KeyringAvailable() {
				return fmt.Errorf("OS keyring unavailable; use environment variables instead")
			}

			value, err := readSecret(prompt)
			if err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("empty value, nothing stored")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			return bot.MigrateKeyToKeyring(keyringName, value, logger)
		},
	}
}

func redactSecret(s string) string {
	if s == "" || bot.IsEnvReference(s) {
		return s
	}
	return "***"
}

// readSecret reads a value from the terminal without echoing. Falls back
// to plain stdin when not attached to a terminal (piped input).
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	var buf [1024]byte
	n, err := os.Stdin.Read(buf[:])
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(buf[:n])), nil
}
