// Package fetcher implements the retrying page fetcher: session cookies,
// Referer chaining, 403 header escalation and linear backoff between
// attempts. It owns all anti-blocking behavior so that callers only see
// parsed documents or a "page unavailable" error.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
	"github.com/wardrobe-ai/catalog-sync/internal/metrics"
)

// Config controls fetch pacing and the retry budget.
type Config struct {
	BaseURL    string
	UserAgent  string
	MaxRetries int
	Delay      time.Duration
}

// StatusError reports a non-2xx response that survived escalation.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d for %s", e.Code, e.URL)
}

// Fetcher retrieves pages through a Transport, maintaining the session
// state (cookies live in the transport, the Referer chain lives here).
type Fetcher struct {
	cfg       Config
	transport catalog.Transport
	limiter   *rate.Limiter
	logger    *zap.Logger
	backoff   func(attempt int) time.Duration

	// sessionPause is the settle delay after re-establishing a session
	// mid-escalation.
	sessionPause time.Duration

	mu          sync.Mutex
	lastURL     string
	sessionInit bool
}

// New builds a Fetcher on top of the given transport.
func New(cfg Config, transport catalog.Transport, logger *zap.Logger) *Fetcher {
	metrics.Init()
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	return &Fetcher{
		cfg:          cfg,
		transport:    transport,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger,
		backoff:      linearBackoff,
		sessionPause: 2 * time.Second,
	}
}

// linearBackoff waits longer for each retry: 3s, 6s, 9s...
func linearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 3 * time.Second
}

// Fetch retrieves url and parses it, retrying up to the configured budget.
// Exhausted retries yield catalog.ErrPageUnavailable; callers treat the page
// as gone and continue the batch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.ObserveRetry()
			f.logger.Warn("retrying fetch",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", f.cfg.MaxRetries),
			)
			if err := f.pause(ctx, f.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		res, err := f.attempt(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
			}
			lastErr = err
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
		if err != nil {
			lastErr = fmt.Errorf("parse document: %w", err)
			continue
		}
		f.setLastURL(rawURL)
		return doc, nil
	}

	f.logger.Error("fetch exhausted retries",
		zap.String("url", rawURL),
		zap.Int("attempts", f.cfg.MaxRetries),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%s (%v): %w", rawURL, lastErr, catalog.ErrPageUnavailable)
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string) (catalog.FetchResult, error) {
	f.establishSession(ctx)

	if err := f.wait(ctx); err != nil {
		return catalog.FetchResult{}, err
	}

	headers := browserHeaders(f.cfg.UserAgent)
	headers.Set("Referer", f.referer())
	headers.Set("Origin", f.cfg.BaseURL)

	res, err := f.transport.Get(ctx, rawURL, headers)
	if err != nil {
		return catalog.FetchResult{}, err
	}
	metrics.ObserveFetch(res.StatusCode, res.Duration)

	if res.StatusCode == http.StatusForbidden {
		res, err = f.escalate(ctx, rawURL, headers)
		if err != nil {
			return catalog.FetchResult{}, err
		}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return catalog.FetchResult{}, &StatusError{Code: res.StatusCode, URL: rawURL}
	}
	return res, nil
}

// escalate works through the 403 recovery ladder: full fingerprint headers,
// then a fresh session with fingerprint headers, then a minimal header set.
// The first rung that stops returning 403 wins.
func (f *Fetcher) escalate(ctx context.Context, rawURL string, base http.Header) (catalog.FetchResult, error) {
	f.logger.Warn("403 response, escalating headers", zap.String("url", rawURL))

	enhanced := fingerprintHeaders(base, f.sameOrigin(rawURL))
	res, err := f.transport.Get(ctx, rawURL, enhanced)
	if err != nil || res.StatusCode != http.StatusForbidden {
		return res, err
	}

	f.logger.Warn("403 persists, re-establishing session", zap.String("url", rawURL))
	f.visitRoot(ctx)
	if err := f.pause(ctx, f.sessionPause); err != nil {
		return catalog.FetchResult{}, err
	}
	res, err = f.transport.Get(ctx, rawURL, enhanced)
	if err != nil || res.StatusCode != http.StatusForbidden {
		return res, err
	}

	return f.transport.Get(ctx, rawURL, minimalHeaders(f.cfg.UserAgent))
}

// establishSession visits the site root once per run to pick up baseline
// cookies. Best-effort: a failure here is not a fetch failure.
func (f *Fetcher) establishSession(ctx context.Context) {
	f.mu.Lock()
	done := f.sessionInit
	f.sessionInit = true
	f.mu.Unlock()
	if done {
		return
	}
	f.logger.Debug("establishing session", zap.String("base_url", f.cfg.BaseURL))
	f.visitRoot(ctx)
}

func (f *Fetcher) visitRoot(ctx context.Context) {
	headers := fingerprintHeaders(browserHeaders(f.cfg.UserAgent), false)
	headers.Del("Referer")
	if _, err := f.transport.Get(ctx, f.cfg.BaseURL, headers); err != nil {
		f.logger.Warn("session establishment failed", zap.Error(err))
		return
	}
	f.setLastURL(f.cfg.BaseURL)
}

func (f *Fetcher) wait(ctx context.Context) error {
	start := time.Now()
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	metrics.ObserveRateLimitWait(time.Since(start))
	return nil
}

func (f *Fetcher) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (f *Fetcher) referer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastURL != "" {
		return f.lastURL
	}
	return f.cfg.BaseURL
}

func (f *Fetcher) setLastURL(u string) {
	f.mu.Lock()
	f.lastURL = u
	f.mu.Unlock()
}

func (f *Fetcher) sameOrigin(rawURL string) bool {
	base, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return false
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return base.Host == target.Host
}
