// Package llm implements the model client for text and vision generation.
// Uses the Gemini generateContent REST format. One attempt per call, an
// explicit timeout per call class, and no retry: turns degrade to canned
// replies instead of blocking the user.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrPolicyBlocked marks a content-policy rejection from the model. Callers
// answer it with a distinct canned reply so operators can tell blocks from
// bugs in the logs.
var ErrPolicyBlocked = errors.New("model rejected the request on content policy")

// ErrTimeout marks a call that ran past its deadline.
var ErrTimeout = errors.New("model call timed out")

// ErrAPIStatus marks a non-200 response from the model endpoint. Callers
// match it with errors.Is to answer network trouble distinctly from model
// refusals.
var ErrAPIStatus = errors.New("model API error")

// Config holds model client settings.
type Config struct {
	// BaseURL is the API root (default Gemini public endpoint).
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier (e.g. "gemini-1.5-flash-latest").
	Model string `yaml:"model"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// MaxOutputTokens caps the generated length.
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// TextTimeoutSeconds applies to text-only calls.
	TextTimeoutSeconds int `yaml:"text_timeout_seconds"`

	// VisionTimeoutSeconds applies to calls carrying inline media, which
	// legitimately take longer.
	VisionTimeoutSeconds int `yaml:"vision_timeout_seconds"`
}

// DefaultConfig returns the default model settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "https://generativelanguage.googleapis.com/v1beta",
		Model:              "gemini-1.5-flash-latest",
		Temperature:        0.8,
		MaxOutputTokens:    800,
		TextTimeoutSeconds: 30,
		// Vision and audio calls legitimately take longer.
		VisionTimeoutSeconds: 45,
	}
}

// ---------- Wire Types ----------

// Part is one content part: text or inline binary data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData carries base64-encoded binary content.
type InlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Content is one conversation entry: a role plus its parts.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// UserText builds a user turn with a single text part.
func UserText(text string) Content {
	return Content{Role: "user", Parts: []Part{{Text: text}}}
}

// UserMedia builds a user turn with a task prompt plus inline binary data.
func UserMedia(prompt, mimeType string, data []byte) Content {
	return Content{Role: "user", Parts: []Part{
		{Text: prompt},
		{InlineData: &InlineData{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
	}}
}

// ModelText builds a model turn with a single text part.
func ModelText(text string) Content {
	return Content{Role: "model", Parts: []Part{{Text: text}}}
}

type generateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// ---------- Client ----------

// Client talks to the model API.
type Client struct {
	cfg           Config
	textTimeout   time.Duration
	visionTimeout time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a model client. Zero-valued config fields fall back to
// defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = defaults.MaxOutputTokens
	}
	if cfg.TextTimeoutSeconds == 0 {
		cfg.TextTimeoutSeconds = defaults.TextTimeoutSeconds
	}
	if cfg.VisionTimeoutSeconds == 0 {
		cfg.VisionTimeoutSeconds = defaults.VisionTimeoutSeconds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:           cfg,
		textTimeout:   time.Duration(cfg.TextTimeoutSeconds) * time.Second,
		visionTimeout: time.Duration(cfg.VisionTimeoutSeconds) * time.Second,
		httpClient:    &http.Client{},
		logger:        logger.With("component", "llm"),
	}
}

// Complete runs a text-only generation over the conversation.
func (c *Client) Complete(ctx context.Context, contents []Content) (string, error) {
	return c.generate(ctx, contents, c.textTimeout)
}

// CompleteVision runs a generation whose latest turn carries inline media.
func (c *Client) CompleteVision(ctx context.Context, contents []Content) (string, error) {
	return c.generate(ctx, contents, c.visionTimeout)
}

func (c *Client) generate(ctx context.Context, contents []Content, timeout time.Duration) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("model API key not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			c.logger.Warn("model call timed out", "timeout", timeout)
			return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("model API error",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 500),
		)
		return "", fmt.Errorf("%w: status %d: %s", ErrAPIStatus, resp.StatusCode, truncate(string(respBody), 200))
	}

	if reason := blockReason(respBody); reason != "" {
		c.logger.Warn("model blocked the request", "reason", reason)
		return "", fmt.Errorf("%w: %s", ErrPolicyBlocked, reason)
	}

	text := candidateText(respBody)
	if text == "" {
		return "", fmt.Errorf("model response carried no candidate text: %s", truncate(string(respBody), 200))
	}

	c.logger.Debug("generation done",
		"model", c.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"contents", len(contents),
		"output_chars", len(text),
	)
	return text, nil
}

// blockReason extracts a content-policy rejection signal, if present.
func blockReason(body []byte) string {
	if reason := gjson.GetBytes(body, "promptFeedback.blockReason"); reason.Exists() {
		return reason.String()
	}
	finish := gjson.GetBytes(body, "candidates.0.finishReason").String()
	switch finish {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return finish
	}
	return ""
}

// candidateText joins the text parts of the first candidate.
func candidateText(body []byte) string {
	parts := gjson.GetBytes(body, "candidates.0.content.parts.#.text")
	var sb strings.Builder
	for _, part := range parts.Array() {
		sb.WriteString(part.String())
	}
	return strings.TrimSpace(sb.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
