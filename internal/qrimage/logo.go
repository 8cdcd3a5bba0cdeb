package qrimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	_ "golang.org/x/image/webp"
)

var ErrLogoFetch = errors.New("failed to fetch logo")

const (
	DefaultLogoTimeout = 5 * time.Second

	// larger bodies are rejected rather than truncated
	maxLogoBytes = 2 << 20
)

// LogoFetcher downloads and decodes logo images referenced by URL.
type LogoFetcher struct {
	client *http.Client
}

func NewLogoFetcher(timeout time.Duration) *LogoFetcher {
	if timeout <= 0 {
		timeout = DefaultLogoTimeout
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = timeout

	return &LogoFetcher{client: client}
}

// Fetch returns the decoded image at logoURL. PNG, JPEG, GIF and WebP are supported.
func (f *LogoFetcher) Fetch(ctx context.Context, logoURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logoURL, nil)
	if err != nil {
		return nil, errors.Join(ErrLogoFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrLogoFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrLogoFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes+1))
	if err != nil {
		return nil, errors.Join(ErrLogoFetch, err)
	}
	if len(body) > maxLogoBytes {
		return nil, fmt.Errorf("%w: logo exceeds %d bytes", ErrLogoFetch, maxLogoBytes)
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLogoFetch, err)
	}
	return img, nil
}
