// Package bot is the conversation layer: configuration, the persona, the
// turn controller that drives one inbound event through prompt building,
// model call, parsing and dispatch, and the discovery sub-flow.
package bot

import (
	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/llm"
)

// Config is the full application configuration.
type Config struct {
	Line      LineConfig      `yaml:"line"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Store     StoreConfig     `yaml:"store"`
	Audio     AudioConfig     `yaml:"audio"`
	Assets    AssetsConfig    `yaml:"assets"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Logging   LoggingConfig   `yaml:"logging"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// LineConfig holds the messaging channel credentials.
type LineConfig struct {
	// ChannelSecret signs inbound webhooks.
	ChannelSecret string `yaml:"channel_secret"`

	// ChannelToken authenticates outbound API calls.
	ChannelToken string `yaml:"channel_token"`
}

// LLMConfig wraps the model client settings plus the wire format the model
// is prompted to answer in.
type LLMConfig struct {
	llm.Config `yaml:",inline"`

	// WireFormat selects the directive parser: "json" (default) or
	// "legacy" for the bracket-tag form. The configured parser is the only
	// one applied; garbage that fails it becomes the confusion reply
	// rather than being re-tried against the other format.
	WireFormat string `yaml:"wire_format"`
}

// SearchConfig holds image search provider credentials. Providers are
// tried in order: Google CSE first, then Pexels.
type SearchConfig struct {
	GoogleAPIKey   string `yaml:"google_api_key"`
	GoogleEngineID string `yaml:"google_engine_id"`
	PexelsAPIKey   string `yaml:"pexels_api_key"`

	// MaxCandidates bounds how many search results are fetched and
	// verified per theme.
	MaxCandidates int `yaml:"max_candidates"`
}

// StoreConfig selects and tunes the session store.
type StoreConfig struct {
	// Type is "memory" or "sqlite".
	Type string `yaml:"type"`

	// Path is the SQLite database file (sqlite type only).
	Path string `yaml:"path"`

	// IdleTTLHours is how long a session may sit untouched before the
	// sweeper removes it. Zero disables sweeping.
	IdleTTLHours int `yaml:"idle_ttl_hours"`

	// SweepSchedule is a cron expression for the idle sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// AudioConfig configures the static audio host for meow sounds.
type AudioConfig struct {
	// Dir is the local directory served under /audio/.
	Dir string `yaml:"dir"`

	// BaseURL is the public URL prefix delivered to the platform,
	// e.g. "https://bot.example.com/audio". Empty disables sound replies.
	BaseURL string `yaml:"base_url"`
}

// AssetsConfig locates the editable asset tables.
type AssetsConfig struct {
	// TablesPath is the YAML file holding sticker/sound/image tables.
	// Created with defaults on first run when missing.
	TablesPath string `yaml:"tables_path"`
}

// GatewayConfig configures the HTTP surface.
type GatewayConfig struct {
	// Listen is the bind address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// AdminToken guards the admin endpoints when set.
	AdminToken string `yaml:"admin_token"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DiscoveryConfig tunes the secret/discovery sub-flow.
type DiscoveryConfig struct {
	// GeneratorChance is the probability (0..1) of asking the model to
	// author a fresh discovery instead of using the pre-authored pool.
	GeneratorChance float64 `yaml:"generator_chance"`
}

// DefaultConfig returns a config with sensible defaults. Credentials are
// intentionally empty and come from the environment or the OS keyring.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Config:     llm.DefaultConfig(),
			WireFormat: WireFormatJSON,
		},
		Search: SearchConfig{
			MaxCandidates: 3,
		},
		Store: StoreConfig{
			Type:          "memory",
			Path:          "xiaoyun.db",
			IdleTTLHours:  72,
			SweepSchedule: "17 4 * * *",
		},
		Audio: AudioConfig{
			Dir: "audio",
		},
		Assets: AssetsConfig{
			TablesPath: "assets.yaml",
		},
		Gateway: GatewayConfig{
			Listen: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Discovery: DiscoveryConfig{
			GeneratorChance: 0.4,
		},
	}
}

// Wire format names for LLMConfig.WireFormat.
const (
	WireFormatJSON   = "json"
	WireFormatLegacy = "legacy"
)
