package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerHost hands out one token bucket per host.
type PerHost struct {
	mu         sync.Mutex
	m          map[string]*limitEntry
	perSecond  float64
	burst      int
	maxEntries int
}

type limitEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// New returns a limiter allowing perSecond requests per host. perSecond <= 0
// disables limiting.
func New(perSecond float64, burst int) *PerHost {
	if burst < 1 {
		burst = 1
	}
	return &PerHost{
		m:          make(map[string]*limitEntry),
		perSecond:  perSecond,
		burst:      burst,
		maxEntries: 1024,
	}
}

func (p *PerHost) entry(host string) *limitEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	e, ok := p.m[host]
	if !ok {
		if len(p.m) >= p.maxEntries {
			p.evict(now.Add(-time.Hour))
		}
		lim := rate.Limit(p.perSecond)
		if p.perSecond <= 0 {
			lim = rate.Inf
		}
		e = &limitEntry{limiter: rate.NewLimiter(lim, p.burst)}
		p.m[host] = e
	}
	e.lastUsed = now
	return e
}

func (p *PerHost) evict(cutoff time.Time) {
	for host, e := range p.m {
		if e.lastUsed.Before(cutoff) {
			delete(p.m, host)
		}
	}
}

func (p *PerHost) Allow(host string) bool {
	return p.entry(host).limiter.Allow()
}

// Wait blocks until host may be contacted or ctx is done.
func (p *PerHost) Wait(ctx context.Context, host string) error {
	return p.entry(host).limiter.Wait(ctx)
}
