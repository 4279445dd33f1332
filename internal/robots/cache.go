// Package robots caches robots.txt policies for the hosts the frame index
// crawls.
package robots

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/temoto/robotstxt"
)

// Doer is the subset of an HTTP client the cache needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Cache struct {
	hc  Doer
	lru *expirable.LRU[string, *robotstxt.RobotsData]
	ua  string
}

func NewCache(hc Doer, ua string) *Cache {
	return &Cache{
		hc:  hc,
		lru: expirable.NewLRU[string, *robotstxt.RobotsData](64, nil, 24*time.Hour),
		ua:  ua,
	}
}

// Get returns the policy for u's scheme and host. A missing or unreachable
// robots.txt allows everything.
func (c *Cache) Get(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host
	if v, ok := c.lru.Get(key); ok {
		return v
	}

	rd, _ := robotstxt.FromBytes(nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key+"/robots.txt", nil)
	if err == nil {
		req.Header.Set("User-Agent", c.ua)
		if resp, err := c.hc.Do(req); err == nil {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if parsed, err := robotstxt.FromBytes(b); err == nil {
					rd = parsed
				}
			}
		}
	}
	c.lru.Add(key, rd)
	return rd
}

// Allowed reports whether ua may fetch u.
func (c *Cache) Allowed(ctx context.Context, u *url.URL) bool {
	return Allowed(c.Get(ctx, u), c.ua, u.Path)
}

func Allowed(rd *robotstxt.RobotsData, ua, path string) bool {
	g := rd.FindGroup(ua)
	if g == nil {
		g = rd.FindGroup("*")
	}
	if g == nil {
		return true
	}
	return g.Test(path)
}
