package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errIndex = errors.New("index 503")

func TestCircuitBreaker_ClosedState(t *testing.T) {
	cb := New("data.example.org", &Config{Threshold: 3, FailureRatio: 0.6, Timeout: time.Second, Interval: time.Minute})

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", cb.State())
	}
	for i := 0; i < 5; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after successes, got %v", cb.State())
	}
}

func TestCircuitBreaker_OpensOnFailures(t *testing.T) {
	var transitions []State
	cb := New("data.example.org", &Config{
		Threshold:    3,
		FailureRatio: 0.6,
		Timeout:      100 * time.Millisecond,
		Interval:     time.Minute,
		OnStateChange: func(_ string, _, to State) {
			transitions = append(transitions, to)
		},
	})

	cb.Execute(func() error { return errIndex })
	cb.Execute(func() error { return errIndex })
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed below threshold, got %v", cb.State())
	}

	cb.Execute(func() error { return errIndex })
	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen after failures, got %v", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("expected one transition to open, got %v", transitions)
	}
}

func TestCircuitBreaker_ExpectedErrorsDoNotTrip(t *testing.T) {
	notFound := errors.New("404")
	cb := New("data.example.org", &Config{Threshold: 2, FailureRatio: 0.5, Interval: time.Minute})
	ok := func(err error) bool { return err == nil || errors.Is(err, notFound) }

	for i := 0; i < 10; i++ {
		cb.ExecuteFunc(func() error { return notFound }, ok)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := New("data.example.org", &Config{
		Threshold:    2,
		FailureRatio: 0.5,
		Timeout:      50 * time.Millisecond,
		Interval:     time.Minute,
		MaxRequests:  2,
	})

	cb.Execute(func() error { return errIndex })
	cb.Execute(func() error { return errIndex })
	if cb.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %v", cb.State())
	}

	time.Sleep(60 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("unexpected error in half-open: %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("expected StateHalfOpen, got %v", cb.State())
	}
	cb.Execute(func() error { return nil })
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after recovery, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	cb := New("data.example.org", &Config{Threshold: 2, FailureRatio: 0.5, Timeout: 50 * time.Millisecond, Interval: time.Minute})

	cb.Execute(func() error { return errIndex })
	cb.Execute(func() error { return errIndex })
	time.Sleep(60 * time.Millisecond)

	cb.Execute(func() error { return errIndex })
	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen after half-open failure, got %v", cb.State())
	}
}

func TestHostBreaker_Independent(t *testing.T) {
	hb := NewHostBreaker(&Config{Threshold: 1, FailureRatio: 0.5, Interval: time.Minute, Timeout: time.Minute})
	always := func(err error) bool { return err == nil }

	hb.ExecuteFunc("a.example.org", func() error { return errIndex }, always)
	if hb.State("a.example.org") != StateOpen {
		t.Errorf("expected host a open")
	}
	if hb.State("b.example.org") != StateClosed {
		t.Errorf("expected host b closed")
	}
	hb.Reset("a.example.org")
	if hb.State("a.example.org") != StateClosed {
		t.Errorf("expected host a closed after reset")
	}
}
