package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gustycube/conjunctions/internal/circuitbreaker"
)

func TestResilientClient_UserAgentAndStatus(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewResilientClient(nil, "ConjunctionFinder/1.0", nil)

	resp, err := c.GetWithContext(context.Background(), server.URL+"/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 passed through, got %d", resp.StatusCode)
	}
	if gotUA != "ConjunctionFinder/1.0" {
		t.Errorf("expected user agent set, got %q", gotUA)
	}

	_, err = c.GetWithContext(context.Background(), server.URL+"/broken")
	if StatusCode(err) != http.StatusBadGateway {
		t.Errorf("expected HTTPError 502, got %v", err)
	}
}

func TestResilientClient_BreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var opened string
	c := NewResilientClient(nil, "", func(host string, _, to circuitbreaker.State) {
		if to == circuitbreaker.StateOpen {
			opened = host
		}
	})
	for i := 0; i < 5; i++ {
		c.GetWithContext(context.Background(), server.URL)
	}

	u, _ := url.Parse(server.URL)
	if c.BreakerState(u.Host) != circuitbreaker.StateOpen {
		t.Fatalf("expected breaker open for %s", u.Host)
	}
	if opened != u.Host {
		t.Errorf("expected state change hook for %s, got %q", u.Host, opened)
	}
	_, err := c.GetWithContext(context.Background(), server.URL)
	if !errors.Is(err, circuitbreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}
