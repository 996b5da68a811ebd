// client.go is the outbound half: the reply endpoint, user-content
// download, and the public sticker CDN used to show the model what sticker
// the user sent.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIBase     = "https://api.line.me"
	defaultDataAPIBase = "https://api-data.line.me"
	stickerCDNBase     = "https://stickershop.line-scdn.net/stickershop/v1/sticker"
)

// Client talks to the LINE Messaging API for one channel.
type Client struct {
	channelToken string
	apiBase      string
	dataAPIBase  string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a client for the given channel access token.
func NewClient(channelToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		channelToken: channelToken,
		apiBase:      defaultAPIBase,
		dataAPIBase:  defaultDataAPIBase,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger.With("component", "line"),
	}
}

// Reply sends an ordered message list for the given reply token. The
// platform accepts at most MaxReplyMessages per call; longer lists are an
// assembler bug and rejected here rather than truncated silently.
func (c *Client) Reply(ctx context.Context, replyToken string, messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("reply with no messages")
	}
	if len(messages) > MaxReplyMessages {
		return fmt.Errorf("reply with %d messages exceeds platform cap %d", len(messages), MaxReplyMessages)
	}

	payload := struct {
		ReplyToken string    `json:"replyToken"`
		Messages   []Message `json:"messages"`
	}{replyToken, messages}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/bot/message/reply", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reply request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("reply rejected",
			"status", resp.StatusCode,
			"body", string(respBody),
			"messages", len(messages),
		)
		return fmt.Errorf("reply returned %d", resp.StatusCode)
	}

	c.logger.Debug("reply sent", "messages", len(messages))
	return nil
}

// GetContent downloads the binary payload of an image or audio message.
// Returns the bytes and the Content-Type reported by the platform.
func (c *Client) GetContent(ctx context.Context, messageID string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.dataAPIBase, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating content request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("content request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("content endpoint returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading content: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// FetchStickerImage tries the public sticker CDN variants (static,
// animation frame, popup frame) in order and returns the first PNG found.
// A miss is normal for some packages; callers fall back to the reverse
// keyword table.
func (c *Client) FetchStickerImage(ctx context.Context, stickerID string) ([]byte, error) {
	variants := []string{
		fmt.Sprintf("%s/%s/android/sticker.png", stickerCDNBase, stickerID),
		fmt.Sprintf("%s/%s/android/sticker_animation.png", stickerCDNBase, stickerID),
		fmt.Sprintf("%s/%s/android/sticker_popup.png", stickerCDNBase, stickerID),
	}

	for _, url := range variants {
		data, err := c.fetchImage(ctx, url)
		if err != nil {
			c.logger.Debug("sticker CDN variant miss", "url", url, "error", err)
			continue
		}
		return data, nil
	}
	return nil, fmt.Errorf("sticker %s not available on CDN", stickerID)
}

func (c *Client) fetchImage(ctx context.Context, url string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "image") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}
	return io.ReadAll(resp.Body)
}
