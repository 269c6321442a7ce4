package embed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxImageBytes caps downloaded image size. Product shots are well under
// this; anything larger is suspect.
const maxImageBytes = 20 << 20

// Downloader fetches product images for embedding. CDNs serving storefront
// images apply the same bot filtering as the shop, so requests carry
// browser-like headers and prefer the encodings the embedding service
// handles best.
type Downloader struct {
	http      *http.Client
	userAgent string
}

// NewDownloader builds an image downloader.
func NewDownloader(userAgent string, timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Downloader{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Download fetches the image at url and returns its bytes.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "image/jpeg,image/png,image/webp,image/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned %d for %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body for %s", url)
	}
	return data, nil
}
