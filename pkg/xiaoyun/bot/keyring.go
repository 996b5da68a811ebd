// keyring.go stores channel and model credentials in the OS keyring
// (Linux: Secret Service, macOS: Keychain, Windows: Credential Manager).
//
// Priority for resolving secrets:
//  1. OS keyring (encrypted by the OS, requires user session)
//  2. Environment variable / .env file (loaded by godotenv)
//  3. config.yaml value (least secure — plaintext on disk)
package bot

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "xiaoyun"

	// Keyring entry names.
	KeyringLLMKey        = "llm_api_key"
	KeyringChannelToken  = "line_channel_token"
	KeyringChannelSecret = "line_channel_secret"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring. Returns empty string
// if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__xiaoyun_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// ResolveCredentials overlays keyring-stored secrets onto the config.
// Values already resolved from env or config survive when the keyring has
// nothing; keyring values win when present.
func ResolveCredentials(cfg *Config, logger *slog.Logger) {
	if val := GetKeyring(KeyringLLMKey); val != "" {
		cfg.LLM.APIKey = val
		logger.Debug("model API key loaded from OS keyring")
	}
	if val := GetKeyring(KeyringChannelToken); val != "" {
		cfg.Line.ChannelToken = val
		logger.Debug("channel token loaded from OS keyring")
	}
	if val := GetKeyring(KeyringChannelSecret); val != "" {
		cfg.Line.ChannelSecret = val
		logger.Debug("channel secret loaded from OS keyring")
	}
}

// MigrateKeyToKeyring moves a secret from config/env into the OS keyring.
func MigrateKeyToKeyring(name, value string, logger *slog.Logger) error {
	if err := StoreKeyring(name, value); err != nil {
		return fmt.Errorf("storing in keyring: %w", err)
	}
	logger.Info("secret stored in OS keyring",
		"service", keyringService,
		"entry", name,
		"hint", "You can now remove it from .env and config.yaml")
	return nil
}
