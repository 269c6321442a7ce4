package collytransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	tr := New(Config{})
	res, err := tr.Get(context.Background(), srv.URL, http.Header{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(res.Body), "hello")
}

func TestGetSendsProvidedHeaders(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("User-Agent", "test-agent/1.0")
	headers.Set("Referer", "https://shop.example")

	tr := New(Config{})
	_, err := tr.Get(context.Background(), srv.URL, headers)
	require.NoError(t, err)
	require.Equal(t, "test-agent/1.0", gotUA)
	require.Equal(t, "https://shop.example", gotReferer)
}

func TestGetSurfacesForbiddenAsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tr := New(Config{})
	res, err := tr.Get(context.Background(), srv.URL, http.Header{})
	require.NoError(t, err, "HTTP-level failures are results, not errors")
	require.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestGetKeepsCookiesAcrossRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := New(Config{})
	_, err := tr.Get(context.Background(), srv.URL+"/", http.Header{})
	require.NoError(t, err)

	res, err := tr.Get(context.Background(), srv.URL+"/page", http.Header{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode, "cookie jar survives across requests")
}

func TestGetAllowsRevisits(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	tr := New(Config{})
	for i := 0; i < 3; i++ {
		_, err := tr.Get(context.Background(), srv.URL, http.Header{})
		require.NoError(t, err)
	}
	require.Equal(t, 3, hits)
}
