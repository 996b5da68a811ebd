// sticker.go resolves semantic sticker keywords to concrete assets. The
// chain is: detailed triggers → general table → ordered generic fallback
// keywords → hard-coded default. Resolution is total: it never fails.
package resolve

import (
	"log/slog"
	"math/rand/v2"
)

// StickerResolver resolves sticker keywords.
type StickerResolver struct {
	tables *Tables
	rng    *rand.Rand
	logger *slog.Logger
}

// NewStickerResolver creates a sticker resolver. A nil rng uses a
// self-seeded source.
func NewStickerResolver(tables *Tables, rng *rand.Rand, logger *slog.Logger) *StickerResolver {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StickerResolver{
		tables: tables,
		rng:    rng,
		logger: logger.With("component", "resolve.sticker"),
	}
}

// Resolve maps a keyword to a sticker asset. When a keyword has several
// assets one is picked uniformly at random, so repeated use of the same
// concept stays visually varied.
func (r *StickerResolver) Resolve(keyword string) StickerAsset {
	if asset, ok := r.lookup(keyword); ok {
		return asset
	}

	r.logger.Warn("no sticker for keyword, walking fallback chain", "keyword", keyword)
	for _, fallback := range fallbackStickerKeywords {
		if asset, ok := r.lookup(fallback); ok {
			return asset
		}
	}

	r.logger.Error("sticker fallback chain exhausted, using hard-coded default")
	return hardcodedFallbackSticker
}

func (r *StickerResolver) lookup(keyword string) (StickerAsset, bool) {
	if assets := r.tables.DetailedTriggers[keyword]; len(assets) > 0 {
		return assets[r.rng.IntN(len(assets))], true
	}
	if assets := r.tables.Stickers[keyword]; len(assets) > 0 {
		return assets[r.rng.IntN(len(assets))], true
	}
	return StickerAsset{}, false
}

// MeaningOf returns the semantic label recorded for a sticker ID the user
// sent, falling back to a random generic emotion when unknown. Used to
// build the LLM prompt when the sticker image itself cannot be fetched.
func (r *StickerResolver) MeaningOf(stickerID string) string {
	if meaning, ok := r.tables.StickerMeanings[stickerID]; ok {
		return meaning
	}
	r.logger.Debug("sticker ID has no recorded meaning, picking generic emotion", "sticker_id", stickerID)
	return commonStickerMeanings[r.rng.IntN(len(commonStickerMeanings))]
}
