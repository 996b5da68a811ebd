// fetch.go downloads candidate images for verification. Downloads are
// bounded by a hard size ceiling (multimodal payload limits downstream) and
// must decode as an actual image before being trusted.
package imagesearch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	// Register the decoders for formats image search commonly returns.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxImageBytes is the hard ceiling on a fetched candidate.
const MaxImageBytes = 4 << 20 // 4 MB

// Fetcher downloads and sanity-checks image candidates.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher with a sensible per-fetch timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch downloads the image at url. It fails for anything over
// MaxImageBytes, for non-image content types, and for bytes that do not
// decode as a known image format. Returns the bytes and a normalized MIME
// type.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating fetch request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}
	if resp.ContentLength > MaxImageBytes {
		return nil, "", fmt.Errorf("image is %d bytes, over the %d ceiling", resp.ContentLength, MaxImageBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("image exceeds the %d byte ceiling", MaxImageBytes)
	}

	format, err := decodeCheck(data)
	if err != nil {
		return nil, "", err
	}
	return data, "image/" + format, nil
}

// decodeCheck verifies the bytes decode as an image and returns the format
// name. Content-Type headers lie often enough that the bytes are the only
// thing checked.
func decodeCheck(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("bytes do not decode as an image: %w", err)
	}
	if format == "" || strings.ContainsAny(format, "/ ") {
		return "", fmt.Errorf("unexpected image format %q", format)
	}
	return format, nil
}
