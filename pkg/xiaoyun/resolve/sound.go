// sound.go resolves meow-sound keywords. Sound is decorative: a miss fails
// resolution and the caller drops the directive, no deeper fallback.
package resolve

import (
	"log/slog"
	"strings"
)

// Sound is a resolved audio clip.
type Sound struct {
	URL        string
	DurationMS int
}

// SoundResolver resolves sound keywords against the sound table and the
// configured static audio host.
type SoundResolver struct {
	tables  *Tables
	baseURL string
	logger  *slog.Logger
}

// NewSoundResolver creates a sound resolver. An empty baseURL makes every
// resolution fail, which callers must treat as "skip the sound".
func NewSoundResolver(tables *Tables, baseURL string, logger *slog.Logger) *SoundResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SoundResolver{
		tables:  tables,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "resolve.sound"),
	}
}

// Resolve maps a keyword to a playable clip. Returns false for unknown
// keywords or when no audio host is configured.
func (r *SoundResolver) Resolve(keyword string) (Sound, bool) {
	asset, ok := r.tables.Sounds[keyword]
	if !ok {
		r.logger.Warn("unknown sound keyword", "keyword", keyword)
		return Sound{}, false
	}
	if r.baseURL == "" {
		r.logger.Warn("audio host not configured, skipping sound", "keyword", keyword)
		return Sound{}, false
	}
	return Sound{
		URL:        r.baseURL + "/" + asset.File,
		DurationMS: asset.DurationMS,
	}, true
}
