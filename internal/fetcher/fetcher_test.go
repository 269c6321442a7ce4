package fetcher

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
)

type recordedCall struct {
	url     string
	headers http.Header
}

type fakeTransport struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler func(url string, headers http.Header) (catalog.FetchResult, error)
}

func (t *fakeTransport) Get(_ context.Context, url string, headers http.Header) (catalog.FetchResult, error) {
	t.mu.Lock()
	t.calls = append(t.calls, recordedCall{url: url, headers: headers.Clone()})
	t.mu.Unlock()
	return t.handler(url, headers)
}

func (t *fakeTransport) Close() error { return nil }

func okResult(url string) (catalog.FetchResult, error) {
	return catalog.FetchResult{
		URL:        url,
		StatusCode: http.StatusOK,
		Body:       []byte("<html><body><h1>ok</h1></body></html>"),
	}, nil
}

func newTestFetcher(t *testing.T, transport catalog.Transport) *Fetcher {
	t.Helper()
	f := New(Config{
		BaseURL:    "https://shop.example",
		MaxRetries: 3,
	}, transport, zap.NewNop())
	f.backoff = func(int) time.Duration { return 0 }
	f.sessionPause = 0
	return f
}

func TestFetchEstablishesSessionFirst(t *testing.T) {
	transport := &fakeTransport{handler: func(url string, _ http.Header) (catalog.FetchResult, error) {
		return okResult(url)
	}}
	f := newTestFetcher(t, transport)

	doc, err := f.Fetch(context.Background(), "https://shop.example/product/coat-1/")
	require.NoError(t, err)
	require.NotNil(t, doc)

	require.Len(t, transport.calls, 2)
	require.Equal(t, "https://shop.example", transport.calls[0].url, "site root visited before the first page")
	require.Equal(t, "https://shop.example/product/coat-1/", transport.calls[1].url)
}

func TestFetchChainsReferer(t *testing.T) {
	transport := &fakeTransport{handler: func(url string, _ http.Header) (catalog.FetchResult, error) {
		return okResult(url)
	}}
	f := newTestFetcher(t, transport)

	_, err := f.Fetch(context.Background(), "https://shop.example/a/page-1/")
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), "https://shop.example/a/page-2/")
	require.NoError(t, err)

	first := transport.calls[1]
	second := transport.calls[2]
	require.Equal(t, "https://shop.example", first.headers.Get("Referer"))
	require.Equal(t, "https://shop.example/a/page-1/", second.headers.Get("Referer"))
}

func TestFetchEscalatesOn403(t *testing.T) {
	transport := &fakeTransport{handler: func(url string, headers http.Header) (catalog.FetchResult, error) {
		if url == "https://shop.example" {
			return okResult(url)
		}
		if headers.Get("Sec-Ch-Ua") == "" {
			return catalog.FetchResult{URL: url, StatusCode: http.StatusForbidden}, nil
		}
		return okResult(url)
	}}
	f := newTestFetcher(t, transport)

	doc, err := f.Fetch(context.Background(), "https://shop.example/product/coat-1/")
	require.NoError(t, err)
	require.NotNil(t, doc)

	// session root, plain attempt (403), fingerprint attempt (200)
	require.Len(t, transport.calls, 3)
	require.Empty(t, transport.calls[1].headers.Get("Sec-Ch-Ua"))
	require.NotEmpty(t, transport.calls[2].headers.Get("Sec-Ch-Ua"))
	require.Equal(t, "same-origin", transport.calls[2].headers.Get("Sec-Fetch-Site"))
}

func TestFetchEscalationLadderOrder(t *testing.T) {
	transport := &fakeTransport{handler: func(url string, headers http.Header) (catalog.FetchResult, error) {
		if url == "https://shop.example" {
			return okResult(url)
		}
		// Only the minimal header set gets through.
		if headers.Get("Sec-Ch-Ua") == "" && headers.Get("DNT") == "" {
			return okResult(url)
		}
		return catalog.FetchResult{URL: url, StatusCode: http.StatusForbidden}, nil
	}}
	f := newTestFetcher(t, transport)

	doc, err := f.Fetch(context.Background(), "https://shop.example/product/coat-1/")
	require.NoError(t, err)
	require.NotNil(t, doc)

	// root, plain 403, fingerprint 403, root revisit, fingerprint 403, minimal 200
	require.Len(t, transport.calls, 6)
	require.Equal(t, "https://shop.example", transport.calls[3].url, "ladder re-establishes the session")
	last := transport.calls[5].headers
	require.Empty(t, last.Get("Sec-Ch-Ua"))
	require.Empty(t, last.Get("DNT"))
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	var attempts int
	transport := &fakeTransport{handler: func(url string, _ http.Header) (catalog.FetchResult, error) {
		if url == "https://shop.example" {
			return okResult(url)
		}
		attempts++
		if attempts < 3 {
			return catalog.FetchResult{}, errors.New("connection reset")
		}
		return okResult(url)
	}}
	f := newTestFetcher(t, transport)

	doc, err := f.Fetch(context.Background(), "https://shop.example/product/coat-1/")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, 3, attempts)
}

func TestFetchReturnsPageUnavailableAfterBudget(t *testing.T) {
	transport := &fakeTransport{handler: func(url string, _ http.Header) (catalog.FetchResult, error) {
		if url == "https://shop.example" {
			return okResult(url)
		}
		return catalog.FetchResult{}, errors.New("timeout")
	}}
	f := newTestFetcher(t, transport)

	_, err := f.Fetch(context.Background(), "https://shop.example/product/coat-1/")
	require.ErrorIs(t, err, catalog.ErrPageUnavailable)
}

func TestFetchNonOKStatusIsAttemptFailure(t *testing.T) {
	transport := &fakeTransport{handler: func(url string, _ http.Header) (catalog.FetchResult, error) {
		if url == "https://shop.example" {
			return okResult(url)
		}
		return catalog.FetchResult{URL: url, StatusCode: http.StatusNotFound}, nil
	}}
	f := newTestFetcher(t, transport)

	_, err := f.Fetch(context.Background(), "https://shop.example/product/gone-1/")
	require.ErrorIs(t, err, catalog.ErrPageUnavailable)
}
