// Package resolve maps semantic keywords and themes from directives onto
// concrete deliverable assets: sticker ID pairs, audio clips, image URLs.
// Each asset kind has an explicit ordered fallback chain so degradation is
// auditable instead of implicit.
package resolve

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// StickerAsset is one concrete sticker reference.
type StickerAsset struct {
	PackageID string `yaml:"package_id"`
	StickerID string `yaml:"sticker_id"`
}

// SoundAsset is one audio clip entry in the sound table.
type SoundAsset struct {
	// File is the clip filename under the static audio host.
	File string `yaml:"file"`

	// DurationMS is the clip length in milliseconds, required by the
	// platform's audio message object.
	DurationMS int `yaml:"duration_ms"`
}

// Tables holds all static lookup tables. Read-only after startup.
type Tables struct {
	// Stickers maps general emotion keywords to sticker assets.
	Stickers map[string][]StickerAsset `yaml:"stickers"`

	// DetailedTriggers maps situational keywords ("謝謝", "晚安", ...) to
	// sticker assets. Checked before Stickers.
	DetailedTriggers map[string][]StickerAsset `yaml:"detailed_triggers"`

	// StickerMeanings is the reverse lookup: numeric sticker ID to a
	// semantic label, used to interpret a user-sent sticker when its image
	// cannot be fetched.
	StickerMeanings map[string]string `yaml:"sticker_meanings"`

	// Sounds maps sound keywords to audio clips.
	Sounds map[string]SoundAsset `yaml:"sounds"`

	// Images maps image keys to pre-approved URLs (persona self-portraits).
	Images map[string]string `yaml:"images"`

	// DefaultImageKey names the Images entry used when a requested key is
	// missing.
	DefaultImageKey string `yaml:"default_image_key"`
}

// LoadTables reads the asset tables from a YAML file. A missing file is not
// an error: the built-in defaults are used and written back out so operators
// have a file to edit, matching how the bot has always bootstrapped its
// sticker config.
func LoadTables(path string, logger *slog.Logger) (*Tables, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Info("asset table file missing, writing defaults", "path", path)
		t := DefaultTables()
		if saveErr := SaveTables(t, path); saveErr != nil {
			logger.Warn("could not write default asset tables", "path", path, "error", saveErr)
		}
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading asset tables %q: %w", path, err)
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing asset tables %q: %w", path, err)
	}

	// Merge defaults for sections the file omits entirely, so a partial
	// file (only sounds, say) still resolves stickers.
	defaults := DefaultTables()
	if len(t.Stickers) == 0 {
		t.Stickers = defaults.Stickers
	}
	if len(t.DetailedTriggers) == 0 {
		t.DetailedTriggers = defaults.DetailedTriggers
	}
	if len(t.StickerMeanings) == 0 {
		t.StickerMeanings = defaults.StickerMeanings
	}
	if len(t.Sounds) == 0 {
		t.Sounds = defaults.Sounds
	}
	if len(t.Images) == 0 {
		t.Images = defaults.Images
		t.DefaultImageKey = defaults.DefaultImageKey
	}
	if t.DefaultImageKey == "" {
		t.DefaultImageKey = defaults.DefaultImageKey
	}

	return &t, nil
}

// SaveTables writes the asset tables as YAML.
func SaveTables(t *Tables, path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling asset tables: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing asset tables %q: %w", path, err)
	}
	return nil
}

// ImageURL looks up a pre-approved image URL by key.
func (t *Tables) ImageURL(key string) (string, bool) {
	url, ok := t.Images[key]
	return url, ok
}

// DefaultImageURL returns the designated fallback image, if configured.
func (t *Tables) DefaultImageURL() (string, bool) {
	if t.DefaultImageKey == "" {
		return "", false
	}
	return t.ImageURL(t.DefaultImageKey)
}
