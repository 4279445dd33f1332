package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_Get(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache := NewCache(&http.Client{Timeout: 2 * time.Second}, "ConjunctionFinder/1.0")
	ctx := context.Background()
	base, _ := url.Parse(server.URL + "/asi/stream0/")

	if !cache.Allowed(ctx, base) {
		t.Error("expected /asi/stream0/ to be allowed")
	}
	private, _ := url.Parse(server.URL + "/private/x")
	if cache.Allowed(ctx, private) {
		t.Error("expected /private/x to be disallowed")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected robots.txt fetched once, got %d", n)
	}
}

func TestCache_Get_404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache := NewCache(&http.Client{Timeout: 2 * time.Second}, "ConjunctionFinder/1.0")
	u, _ := url.Parse(server.URL + "/anything")
	if !cache.Allowed(context.Background(), u) {
		t.Error("expected everything allowed when robots.txt is missing")
	}
}

func TestCache_Unreachable(t *testing.T) {
	cache := NewCache(&http.Client{Timeout: 200 * time.Millisecond}, "ConjunctionFinder/1.0")
	u, _ := url.Parse("http://127.0.0.1:1/asi/")
	if !cache.Allowed(context.Background(), u) {
		t.Error("expected everything allowed when robots.txt is unreachable")
	}
}
