package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Transport issues a single HTTP GET with explicit headers and returns the
// raw result. Implementations exist for a plain HTTP collector and for a
// headless browser.
type Transport interface {
	Get(ctx context.Context, url string, headers http.Header) (FetchResult, error)
	Close() error
}

// Fetcher retrieves and parses one page, applying the retry, session and
// header-escalation policy. A nil document with ErrPageUnavailable means the
// page could not be fetched after all attempts.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Embedder turns raw image bytes into a fixed-length feature vector.
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
	Dimension() int
}

// Store persists products, partitioned by source so deletions never cross
// other sources' data.
type Store interface {
	Upsert(ctx context.Context, p Product) error
	ListIDs(ctx context.Context, source string) ([]string, error)
	DeleteBatch(ctx context.Context, source string, ids []string) error
	Delete(ctx context.Context, source string, id string) error
	Close() error
}

// BlobStore archives raw artifacts (fetched page HTML) and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes sync events (per-product upserts, run summaries) to an
// external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}

// SystemClock is the real-time Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
