// Package collytransport implements catalog.Transport using gocolly.
// The collector's HTTP backend (and with it the cookie jar) is shared
// across clones, so session cookies acquired by one request are sent on
// the next.
package collytransport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
)

// Config controls collector behavior.
type Config struct {
	Timeout time.Duration
}

// Transport issues single GETs through a Colly collector.
type Transport struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Transport.
func New(cfg Config) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false), colly.IgnoreRobotsTxt())
	c.AllowURLRevisit = true
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(newHTTPTransport())

	return &Transport{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Get executes a single HTTP GET with the provided headers. A response with
// any status code (including 403) is returned as a result, not an error;
// errors are reserved for transport-level failures.
func (t *Transport) Get(ctx context.Context, url string, headers http.Header) (catalog.FetchResult, error) {
	var (
		result   catalog.FetchResult
		fetchErr error
	)
	start := time.Now()

	collector := t.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(t.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			r.Headers.Del(key)
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = catalog.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// HTTP-level failure: surface the status to the caller.
			result = catalog.FetchResult{
				URL:        r.Request.URL.String(),
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			return
		}
		fetchErr = err
	})

	if err := t.runCollector(ctx, collector, url); err != nil {
		if result.StatusCode > 0 {
			return result, nil
		}
		if fetchErr != nil {
			return catalog.FetchResult{}, fmt.Errorf("colly visit failed: %w", fetchErr)
		}
		return catalog.FetchResult{}, err
	}
	if fetchErr != nil {
		return catalog.FetchResult{}, fmt.Errorf("colly response failed: %w", fetchErr)
	}
	return result, nil
}

// Close is a no-op; the pooled HTTP transport needs no explicit teardown.
func (t *Transport) Close() error { return nil }

func (t *Transport) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
