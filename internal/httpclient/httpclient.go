package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/gustycube/conjunctions/internal/circuitbreaker"
)

func Default() *http.Client {
	tr := &http.Transport{
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: false},
		MaxIdleConns:          64,
		MaxConnsPerHost:       8,
		MaxIdleConnsPerHost:   8,
		ResponseHeaderTimeout: 20 * time.Second,
		IdleConnTimeout:       30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   30 * time.Second,
	}
}

// ResilientClient wraps http.Client with a per-host circuit breaker and a
// fixed User-Agent.
type ResilientClient struct {
	client      *http.Client
	hostBreaker *circuitbreaker.HostBreaker
	userAgent   string
}

// NewResilientClient creates a new HTTP client with circuit breaker.
// onChange may be nil.
func NewResilientClient(client *http.Client, userAgent string, onChange func(host string, from, to circuitbreaker.State)) *ResilientClient {
	if client == nil {
		client = Default()
	}
	config := &circuitbreaker.Config{
		MaxRequests:   3,
		Interval:      60 * time.Second,
		Timeout:       30 * time.Second,
		Threshold:     5,
		FailureRatio:  0.6,
		OnStateChange: onChange,
	}
	return &ResilientClient{
		client:      client,
		hostBreaker: circuitbreaker.NewHostBreaker(config),
		userAgent:   userAgent,
	}
}

// Do executes an HTTP request with circuit breaker protection. A 5xx
// response is returned as an *HTTPError with the body closed.
func (c *ResilientClient) Do(req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var resp *http.Response
	err := c.hostBreaker.ExecuteFunc(host, func() error {
		var err error
		resp, err = c.client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return nil
	}, func(err error) bool {
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetWithContext performs a GET request with context and circuit breaker
func (c *ResilientClient) GetWithContext(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *ResilientClient) BreakerState(host string) circuitbreaker.State {
	return c.hostBreaker.State(host)
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return e.Status
}

// StatusCode returns the HTTP status code carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
