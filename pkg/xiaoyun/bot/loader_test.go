package bot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigOverlaysDefaults(t *testing.T) {
	data := []byte(`
llm:
  model: gemini-1.5-pro
  wire_format: legacy
store:
  type: sqlite
  path: /var/lib/xiaoyun/sessions.db
  idle_ttl_hours: 24
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if cfg.LLM.Model != "gemini-1.5-pro" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.WireFormat != WireFormatLegacy {
		t.Errorf("wire format = %q", cfg.LLM.WireFormat)
	}
	if cfg.Store.Type != "sqlite" || cfg.Store.IdleTTLHours != 24 {
		t.Errorf("store = %+v", cfg.Store)
	}
	// Untouched sections keep their defaults.
	if cfg.Gateway.Listen != ":8080" {
		t.Errorf("gateway listen default lost: %q", cfg.Gateway.Listen)
	}
	if cfg.Search.MaxCandidates != 3 {
		t.Errorf("search default lost: %d", cfg.Search.MaxCandidates)
	}
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_XIAOYUN_TOKEN", "token-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "line:\n  channel_token: ${TEST_XIAOYUN_TOKEN}\n  channel_secret: ${UNSET_PLACEHOLDER_VAR}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile: %v", err)
	}
	if cfg.Line.ChannelToken != "token-from-env" {
		t.Errorf("channel token = %q", cfg.Line.ChannelToken)
	}
	// Unset references survive as placeholders.
	if cfg.Line.ChannelSecret != "${UNSET_PLACEHOLDER_VAR}" {
		t.Errorf("placeholder rewritten: %q", cfg.Line.ChannelSecret)
	}
}

func TestExpandEnvVarDefaults(t *testing.T) {
	t.Setenv("TEST_XIAOYUN_SET", "from-env")

	cases := []struct {
		in, want string
	}{
		{"${TEST_XIAOYUN_SET:-fallback}", "from-env"},
		{"${TEST_XIAOYUN_UNSET_VAR:-fallback}", "fallback"},
		{"${TEST_XIAOYUN_UNSET_VAR:-}", ""},
		{"${TEST_XIAOYUN_UNSET_VAR}", "${TEST_XIAOYUN_UNSET_VAR}"},
		{":8080", ":8080"},
	}
	for _, tc := range cases {
		if got := expandEnvVars(tc.in); got != tc.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveSecretsFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-gemini-key")

	cfg := DefaultConfig()
	resolveSecretsFromEnv(cfg)
	if cfg.LLM.APIKey != "env-gemini-key" {
		t.Errorf("API key = %q", cfg.LLM.APIKey)
	}

	// An explicit config value wins over the environment.
	cfg.LLM.APIKey = "explicit"
	resolveSecretsFromEnv(cfg)
	if cfg.LLM.APIKey != "explicit" {
		t.Errorf("explicit key overwritten: %q", cfg.LLM.APIKey)
	}
}

func TestValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Line.ChannelSecret = "secret"
	valid.Line.ChannelToken = "token"
	valid.LLM.APIKey = "key"
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.Line.ChannelSecret = "" }, "channel_secret"},
		{"unresolved placeholder", func(c *Config) { c.Line.ChannelToken = "${LINE_TOKEN}" }, "channel_token"},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, "api_key"},
		{"bad wire format", func(c *Config) { c.LLM.WireFormat = "xml" }, "wire_format"},
		{"bad store type", func(c *Config) { c.Store.Type = "redis" }, "store.type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Line.ChannelSecret = "secret"
			cfg.Line.ChannelToken = "token"
			cfg.LLM.APIKey = "key"
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSaveConfigSanitizesSecrets(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "real-key")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "real-key"

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfigToFile(cfg, path); err != nil {
		t.Fatalf("SaveConfigToFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "real-key") {
		t.Error("secret written in plaintext despite matching env var")
	}
	if !strings.Contains(string(data), "${GEMINI_API_KEY}") {
		t.Error("env reference not written")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config written with permissions %04o, want 0600", perm)
	}
}
