// Package imagesearch finds candidate image URLs for a semantic query.
// Providers are tried in a priority chain: Google Custom Search first, then
// Pexels. Unconfigured providers are skipped, and a fully unconfigured
// chain returns no candidates rather than an error, so image themes degrade
// to text upstream.
package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Candidate is one search hit.
type Candidate struct {
	// URL is the direct image URL.
	URL string

	// AltText is the provider's description, when available.
	AltText string
}

// Searcher finds candidate images for a query.
type Searcher interface {
	// Search returns up to n candidates, best first. An empty result with a
	// nil error means "nothing found"; errors mean the provider itself
	// failed or is unconfigured.
	Search(ctx context.Context, query string, n int) ([]Candidate, error)

	// Name identifies the provider in logs.
	Name() string
}

// ---------- Google Custom Search ----------

// GoogleCSE queries the Google Custom Search JSON API in image mode.
type GoogleCSE struct {
	APIKey     string
	EngineID   string
	httpClient *http.Client
}

// NewGoogleCSE creates a Google Custom Search provider.
func NewGoogleCSE(apiKey, engineID string) *GoogleCSE {
	return &GoogleCSE{
		APIKey:     apiKey,
		EngineID:   engineID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoogleCSE) Name() string { return "google_cse" }

func (g *GoogleCSE) Search(ctx context.Context, query string, n int) ([]Candidate, error) {
	if g.APIKey == "" || g.EngineID == "" {
		return nil, fmt.Errorf("google custom search not configured")
	}

	params := url.Values{}
	params.Set("key", g.APIKey)
	params.Set("cx", g.EngineID)
	params.Set("q", query)
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(n))
	params.Set("safe", "active")

	endpoint := "https://www.googleapis.com/customsearch/v1?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("google search returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Items []struct {
			Link  string `json:"link"`
			Title string `json:"title"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding google search response: %w", err)
	}

	candidates := make([]Candidate, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Link == "" {
			continue
		}
		candidates = append(candidates, Candidate{URL: item.Link, AltText: item.Title})
	}
	return candidates, nil
}

// ---------- Pexels ----------

// Pexels queries the Pexels photo search API.
type Pexels struct {
	APIKey     string
	httpClient *http.Client
}

// NewPexels creates a Pexels provider.
func NewPexels(apiKey string) *Pexels {
	return &Pexels{
		APIKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *Pexels) Name() string { return "pexels" }

func (p *Pexels) Search(ctx context.Context, query string, n int) ([]Candidate, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("pexels not configured")
	}

	endpoint := fmt.Sprintf("https://api.pexels.com/v1/search?query=%s&per_page=%d",
		url.QueryEscape(query), n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Authorization", p.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pexels returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Photos []struct {
			Alt string `json:"alt"`
			Src struct {
				Large string `json:"large"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding pexels response: %w", err)
	}

	candidates := make([]Candidate, 0, len(result.Photos))
	for _, photo := range result.Photos {
		if photo.Src.Large == "" {
			continue
		}
		candidates = append(candidates, Candidate{URL: photo.Src.Large, AltText: photo.Alt})
	}
	return candidates, nil
}

// ---------- Chain ----------

// Chain tries providers in order and returns the first non-empty result.
type Chain struct {
	providers []Searcher
	logger    *slog.Logger
}

// NewChain builds a provider chain. Nil providers are skipped.
func NewChain(logger *slog.Logger, providers ...Searcher) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]Searcher, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Chain{providers: kept, logger: logger.With("component", "imagesearch")}
}

func (c *Chain) Name() string { return "chain" }

// Search walks the provider chain. Provider failures (including
// "unconfigured") are logged and the next provider is tried; the chain only
// errors when every provider errors.
func (c *Chain) Search(ctx context.Context, query string, n int) ([]Candidate, error) {
	var lastErr error
	for _, provider := range c.providers {
		candidates, err := provider.Search(ctx, query, n)
		if err != nil {
			c.logger.Warn("image search provider failed",
				"provider", provider.Name(),
				"error", err,
			)
			lastErr = err
			continue
		}
		if len(candidates) > 0 {
			c.logger.Debug("image search hit",
				"provider", provider.Name(),
				"candidates", len(candidates),
			)
			return candidates, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all image search providers failed: %w", lastErr)
	}
	return nil, nil
}
