// image.go resolves free-text image themes to a verified image URL. The
// pipeline per theme: translate to the search language → search the
// provider chain → fetch each candidate → ask the relevance verifier →
// first verified candidate wins. Any shortfall yields (_, false) and the
// caller substitutes text; a broken image must never reach the user.
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/imagesearch"
)

// Verifier decides whether an image actually depicts the queried theme.
type Verifier interface {
	VerifyImage(ctx context.Context, imageData []byte, mimeType, query string) (bool, error)
}

// Translator rewrites a theme into the search provider's preferred
// language.
type Translator interface {
	TranslateQuery(ctx context.Context, text string) (string, error)
}

// ImageFetcher downloads and sanity-checks a candidate image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// ImageResolver turns themes into verified image URLs.
type ImageResolver struct {
	searcher      imagesearch.Searcher
	fetcher       ImageFetcher
	verifier      Verifier
	translator    Translator
	maxCandidates int
	logger        *slog.Logger
}

// NewImageResolver wires the image resolution pipeline. maxCandidates
// bounds how many search hits are fetched and verified per theme; values
// below 1 default to 3. translator may be nil to skip translation.
func NewImageResolver(searcher imagesearch.Searcher, fetcher ImageFetcher, verifier Verifier, translator Translator, maxCandidates int, logger *slog.Logger) *ImageResolver {
	if maxCandidates < 1 {
		maxCandidates = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageResolver{
		searcher:      searcher,
		fetcher:       fetcher,
		verifier:      verifier,
		translator:    translator,
		maxCandidates: maxCandidates,
		logger:        logger.With("component", "resolve.image"),
	}
}

// Resolve finds a verified image URL for the theme. Returns ("", false)
// when the theme is blank, search yields nothing, or no candidate passes
// verification.
func (r *ImageResolver) Resolve(ctx context.Context, theme string) (string, bool) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "", false
	}
	if r.searcher == nil {
		r.logger.Warn("no image search configured, theme unresolvable", "theme", theme)
		return "", false
	}

	query := r.searchQuery(ctx, theme)

	candidates, err := r.searcher.Search(ctx, query, r.maxCandidates)
	if err != nil {
		r.logger.Warn("image search failed", "theme", theme, "error", err)
		return "", false
	}
	if len(candidates) == 0 {
		r.logger.Info("image search found nothing", "theme", theme, "query", query)
		return "", false
	}
	if len(candidates) > r.maxCandidates {
		candidates = candidates[:r.maxCandidates]
	}

	for _, candidate := range candidates {
		data, mimeType, err := r.fetcher.Fetch(ctx, candidate.URL)
		if err != nil {
			r.logger.Debug("candidate fetch rejected", "url", candidate.URL, "error", err)
			continue
		}

		relevant, err := r.verifier.VerifyImage(ctx, data, mimeType, theme)
		if err != nil {
			r.logger.Warn("relevance verification failed", "url", candidate.URL, "error", err)
			continue
		}
		if relevant {
			r.logger.Info("image theme resolved", "theme", theme, "url", candidate.URL)
			return candidate.URL, true
		}
		r.logger.Debug("candidate judged irrelevant", "url", candidate.URL, "theme", theme)
	}

	r.logger.Info("no candidate passed verification", "theme", theme, "checked", len(candidates))
	return "", false
}

// searchQuery translates the theme for the search provider when it looks
// like it needs it. Translation failures fall back to the original theme.
func (r *ImageResolver) searchQuery(ctx context.Context, theme string) string {
	if r.translator == nil || !containsHan(theme) {
		return theme
	}
	translated, err := r.translator.TranslateQuery(ctx, theme)
	if err != nil || strings.TrimSpace(translated) == "" {
		r.logger.Debug("query translation skipped", "theme", theme, "error", err)
		return theme
	}
	return strings.TrimSpace(translated)
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
