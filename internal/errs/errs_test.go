package errs

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := Missingf("load state", "/data/ela", "0 state files found")
	wrapped := fmt.Errorf("day 2020-01-01: %w", base)

	if got := KindOf(wrapped); got != KindMissing {
		t.Errorf("expected KindMissing, got %v", got)
	}
	if !Is(wrapped, KindMissing) {
		t.Error("expected Is(KindMissing) to be true")
	}
	if Is(wrapped, KindMalformed) {
		t.Error("expected Is(KindMalformed) to be false")
	}
}

func TestKindOf_Plain(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", got)
	}
	if Is(nil, KindUnknown) {
		t.Error("nil error should not match any kind")
	}
}

func TestUnwrap(t *testing.T) {
	err := Malformed("parse", "x.csv", os.ErrInvalid)
	if !errors.Is(err, os.ErrInvalid) {
		t.Error("expected wrapped error to be reachable via errors.Is")
	}
	if err.Error() != "parse x.csv: invalid argument" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestSkippable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing", Missingf("op", "", "none"), true},
		{"malformed", Malformed("op", "", errors.New("bad")), true},
		{"unavailable", Unavailable("op", "", errors.New("down")), false},
		{"fatal", Fatalf("op", "bad time"), false},
		{"untagged", errors.New("plain"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Skippable(tt.err); got != tt.want {
				t.Errorf("Skippable() = %v, want %v", got, tt.want)
			}
		})
	}
}
