// Package circuitbreaker stops hammering an index host that keeps failing.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	ErrOpenState       = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration
type Config struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts are cleared.
	Interval time.Duration
	// Timeout spent open before probing again.
	Timeout time.Duration
	// Threshold is the minimum number of requests before the failure
	// ratio is evaluated, and the successes needed to close from half-open.
	Threshold uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
	// OnStateChange is called with the breaker name on every transition.
	OnStateChange func(name string, from, to State)
}

func DefaultConfig() *Config {
	return &Config{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		Threshold:    5,
		FailureRatio: 0.6,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name   string
	config Config

	mu       sync.Mutex
	state    State
	requests uint32
	total    uint32
	failures uint32
	expiry   time.Time
}

func New(name string, config *Config) *CircuitBreaker {
	c := DefaultConfig()
	if config != nil {
		c = config
	}
	cfg := *c
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cb := &CircuitBreaker{name: name, config: cfg, state: StateClosed}
	cb.expiry = time.Now().Add(cfg.Interval)
	return cb
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.current(time.Now())
}

// Counts returns requests in the current generation and failures seen.
func (cb *CircuitBreaker) Counts() (requests, failures uint32) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.requests, cb.failures
}

// Execute runs fn unless the breaker is open. fn's error counts as a failure
// unless isSuccess says otherwise.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	return cb.ExecuteFunc(fn, func(err error) bool { return err == nil })
}

// ExecuteFunc is Execute with a custom success classifier, so expected
// outcomes such as "not found" do not trip the breaker.
func (cb *CircuitBreaker) ExecuteFunc(fn func() error, isSuccess func(error) bool) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(isSuccess(err))
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.current(time.Now()) {
	case StateOpen:
		return ErrOpenState
	case StateHalfOpen:
		if cb.requests >= cb.config.MaxRequests {
			return ErrTooManyRequests
		}
	}
	cb.requests++
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	switch cb.current(now) {
	case StateClosed:
		cb.total++
		if !success {
			cb.failures++
		}
		if cb.total >= cb.config.Threshold &&
			float64(cb.failures)/float64(cb.total) >= cb.config.FailureRatio {
			cb.transition(StateOpen, now)
		}
	case StateHalfOpen:
		if !success {
			cb.transition(StateOpen, now)
			return
		}
		cb.total++
		if cb.total >= cb.config.MaxRequests {
			cb.transition(StateClosed, now)
		}
	}
}

// current advances time-based transitions. Callers hold mu.
func (cb *CircuitBreaker) current(now time.Time) State {
	switch cb.state {
	case StateClosed:
		if cb.expiry.Before(now) {
			cb.reset(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.transition(StateHalfOpen, now)
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State, now time.Time) {
	from := cb.state
	cb.state = to
	cb.reset(now)
	if cb.config.OnStateChange != nil && from != to {
		cb.config.OnStateChange(cb.name, from, to)
	}
}

func (cb *CircuitBreaker) reset(now time.Time) {
	cb.requests, cb.total, cb.failures = 0, 0, 0
	switch cb.state {
	case StateClosed:
		cb.expiry = now.Add(cb.config.Interval)
	case StateOpen:
		cb.expiry = now.Add(cb.config.Timeout)
	default:
		cb.expiry = time.Time{}
	}
}

// HostBreaker manages circuit breakers per host
type HostBreaker struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	config   *Config
}

func NewHostBreaker(config *Config) *HostBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	return &HostBreaker{breakers: make(map[string]*CircuitBreaker), config: config}
}

func (hb *HostBreaker) get(host string) *CircuitBreaker {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	b, ok := hb.breakers[host]
	if !ok {
		b = New(host, hb.config)
		hb.breakers[host] = b
	}
	return b
}

func (hb *HostBreaker) ExecuteFunc(host string, fn func() error, isSuccess func(error) bool) error {
	return hb.get(host).ExecuteFunc(fn, isSuccess)
}

func (hb *HostBreaker) State(host string) State {
	return hb.get(host).State()
}

func (hb *HostBreaker) Reset(host string) {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	delete(hb.breakers, host)
}
