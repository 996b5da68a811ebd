// loader.go reads YAML configuration with .env loading and environment
// variable expansion, so credentials can stay out of the config file.
package bot

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME}, ${VAR_NAME:-default} or $VAR_NAME in
// config values. Capture groups: 1=name, 2=default (for ${}), 3=bare name.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// LoadConfigFromFile reads and parses a YAML configuration file. .env files
// are loaded first and ${VAR} references in the YAML are expanded.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveSecretsFromEnv(cfg)
	checkFilePermissions(path)

	return cfg, nil
}

// ParseConfig parses YAML bytes into a Config, overlaying defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// SaveConfigToFile writes a Config as YAML. Secrets already present in the
// environment are written as env var references instead of plaintext.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.Line.ChannelSecret = sanitizeSecret(cfg.Line.ChannelSecret, "LINE_CHANNEL_SECRET")
	sanitized.Line.ChannelToken = sanitizeSecret(cfg.Line.ChannelToken, "LINE_CHANNEL_ACCESS_TOKEN")
	sanitized.LLM.APIKey = sanitizeSecret(cfg.LLM.APIKey, "GEMINI_API_KEY")

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches standard locations for a config file.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"xiaoyun.yaml",
		"xiaoyun.yml",
		"configs/config.yaml",
		"configs/xiaoyun.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate reports the configuration problems serving cannot start with.
func (c *Config) Validate() error {
	if c.Line.ChannelSecret == "" || IsEnvReference(c.Line.ChannelSecret) {
		return fmt.Errorf("line.channel_secret is not set (env LINE_CHANNEL_SECRET)")
	}
	if c.Line.ChannelToken == "" || IsEnvReference(c.Line.ChannelToken) {
		return fmt.Errorf("line.channel_token is not set (env LINE_CHANNEL_ACCESS_TOKEN)")
	}
	if c.LLM.APIKey == "" || IsEnvReference(c.LLM.APIKey) {
		return fmt.Errorf("llm.api_key is not set (env GEMINI_API_KEY)")
	}
	switch c.LLM.WireFormat {
	case WireFormatJSON, WireFormatLegacy:
	default:
		return fmt.Errorf("llm.wire_format must be %q or %q, got %q", WireFormatJSON, WireFormatLegacy, c.LLM.WireFormat)
	}
	switch c.Store.Type {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("store.type must be memory or sqlite, got %q", c.Store.Type)
	}
	return nil
}

// ---------- Internal ----------

// loadEnvFiles loads .env files from standard locations. Existing env vars
// are never overwritten.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR}, ${VAR:-default} and $VAR references with
// environment values. Unset references without a default stay as-is so
// placeholders survive.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		varName := sub[1]
		if varName == "" {
			varName = sub[3] // bare $VAR form
		}
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if strings.Contains(match, ":-") {
			return sub[2]
		}
		return match
	})
}

// resolveSecretsFromEnv fills empty or placeholder credential fields from
// the conventional environment variables.
func resolveSecretsFromEnv(cfg *Config) {
	fill := func(target *string, envVars ...string) {
		if *target != "" && !IsEnvReference(*target) {
			return
		}
		for _, name := range envVars {
			if val := os.Getenv(name); val != "" {
				*target = val
				return
			}
		}
	}

	fill(&cfg.Line.ChannelSecret, "LINE_CHANNEL_SECRET")
	fill(&cfg.Line.ChannelToken, "LINE_CHANNEL_ACCESS_TOKEN")
	fill(&cfg.LLM.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	fill(&cfg.Search.GoogleAPIKey, "GOOGLE_CSE_API_KEY")
	fill(&cfg.Search.GoogleEngineID, "GOOGLE_CSE_ENGINE_ID")
	fill(&cfg.Search.PexelsAPIKey, "PEXELS_API_KEY")
}

// sanitizeSecret replaces a real secret with an env var reference for safe
// storage in config files.
func sanitizeSecret(value, envVar string) string {
	if value == "" || IsEnvReference(value) {
		return value
	}
	if os.Getenv(envVar) == value {
		return "${" + envVar + "}"
	}
	return value
}

// IsEnvReference checks if a string is an environment variable reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") || strings.HasPrefix(s, "$")
}

// checkFilePermissions warns if the config file is group/world-readable.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mode := info.Mode().Perm()
	if mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
		)
	}
}
