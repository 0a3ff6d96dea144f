package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestHTTPFetcher tests plain HTTP page loads.
func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><img class="profile-pic"></body></html>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<html><head><title>Page Not Found</title></head></html>`))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/profile", http.StatusFound)
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(r.Header.Get("User-Agent") + "|" + r.Header.Get("Cookie") + "|" + r.Header.Get("X-Test")))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Run("returns content status and ready signal", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher()
		res, err := f.Fetch(context.Background(), Request{
			URL:     server.URL + "/profile",
			WaitFor: []string{"img.profile-pic"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status != http.StatusOK {
			t.Errorf("expected status 200, got %d", res.Status)
		}
		if !res.Ready {
			t.Error("expected ready page")
		}
		if !strings.Contains(res.Content, "profile-pic") {
			t.Errorf("unexpected content %q", res.Content)
		}
	})

	t.Run("non-2xx is a result", func(t *testing.T) {
		t.Parallel()

		res, err := NewHTTPFetcher().Fetch(context.Background(), Request{URL: server.URL + "/missing"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", res.Status)
		}
	})

	t.Run("follows redirects", func(t *testing.T) {
		t.Parallel()

		res, err := NewHTTPFetcher().Fetch(context.Background(), Request{URL: server.URL + "/moved"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasSuffix(res.FinalURL, "/profile") {
			t.Errorf("expected final URL to be /profile, got %q", res.FinalURL)
		}
	})

	t.Run("sends configured headers", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(
			WithUserAgent("probe-test"),
			WithCookie("sessionid=abc"),
			WithHeaders(map[string]string{"X-Test": "yes"}),
		)
		res, err := f.Fetch(context.Background(), Request{URL: server.URL + "/headers"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Content != "probe-test|sessionid=abc|yes" {
			t.Errorf("unexpected echoed headers %q", res.Content)
		}
	})

	t.Run("timeout is a transport error", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPFetcher().Fetch(context.Background(), Request{
			URL:     server.URL + "/slow",
			Timeout: 50 * time.Millisecond,
		})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "timeout") {
			t.Errorf("expected timeout error, got %v", err)
		}
	})

	t.Run("connection refused is a transport error", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		url := closed.URL
		closed.Close()

		if _, err := NewHTTPFetcher().Fetch(context.Background(), Request{URL: url}); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("truncates large bodies", func(t *testing.T) {
		t.Parallel()

		res, err := NewHTTPFetcher(WithMaxBodySize(10)).Fetch(context.Background(), Request{URL: server.URL + "/big"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Content) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(res.Content))
		}
	})
}
