package llm

import (
	"context"
	"fmt"
	"strings"
)

// VerifyImage asks the model whether the image actually depicts the query.
// Used to filter search results before they reach the user.
func (c *Client) VerifyImage(ctx context.Context, imageData []byte, mimeType, query string) (bool, error) {
	prompt := fmt.Sprintf(
		"You are checking an image search result. Does this image clearly show: %q? Answer with exactly YES or NO.",
		query,
	)
	answer, err := c.CompleteVision(ctx, []Content{UserMedia(prompt, mimeType, imageData)})
	if err != nil {
		return false, fmt.Errorf("verifying image: %w", err)
	}

	answer = strings.ToUpper(strings.TrimSpace(answer))
	ok := strings.HasPrefix(answer, "YES")
	c.logger.Debug("image verification", "query", query, "verdict", answer, "accepted", ok)
	return ok, nil
}

// TranslateQuery turns a non-English search phrase into concise English
// keywords. Image search providers return far better results for English
// queries.
func (c *Client) TranslateQuery(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following image search phrase into concise English keywords. Reply with the keywords only, no explanation: %s",
		text,
	)
	out, err := c.Complete(ctx, []Content{UserText(prompt)})
	if err != nil {
		return "", fmt.Errorf("translating search query: %w", err)
	}

	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if out == "" {
		return "", fmt.Errorf("translation came back empty")
	}
	return out, nil
}
