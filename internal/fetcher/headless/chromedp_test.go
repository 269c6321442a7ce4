package headless

import (
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesMaxParallel(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1})
	require.Error(t, err)

	tr, err := New(Config{MaxParallel: 2})
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	require.Equal(t, 2, cap(tr.limiter))
}

func TestNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	tr := &Transport{}
	require.Equal(t, 45*time.Second, tr.navTimeout())
	tr.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, tr.navTimeout())
}

func TestResponseMetaCapturesDocumentOnly(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://cdn.example/img.jpg"},
	})
	status, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, http.StatusOK, status, "subresource responses are ignored")
	require.Equal(t, "https://req", url)

	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 403, URL: "https://shop.example/blocked"},
	})
	status, url = meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "https://shop.example/blocked", url)
}

func TestResponseMetaFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	status, url := meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	src := http.Header{
		"Referer": {"https://shop.example"},
		"X-Multi": {"a", "b"},
	}
	got := toNetworkHeaders(src)
	require.Equal(t, "https://shop.example", got["Referer"])
	require.Equal(t, []string{"a", "b"}, got["X-Multi"])
}
