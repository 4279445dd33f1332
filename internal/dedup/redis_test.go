package dedup

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestRedis_Seen(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	r, err := NewRedis(addr, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer r.Close()

	key := "test|" + time.Now().UTC().Format(time.RFC3339Nano)
	defer r.cli.Del(context.Background(), keyPrefix+key)

	if r.Has(key) {
		t.Errorf("Has(%q) should be false before Seen", key)
	}
	if r.Seen(key) {
		t.Errorf("first Seen(%q) should be false", key)
	}
	if !r.Has(key) {
		t.Errorf("Has(%q) should be true after Seen", key)
	}
	if !r.Seen(key) {
		t.Errorf("second Seen(%q) should be true", key)
	}
	if err := r.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNewRedis_Unreachable(t *testing.T) {
	if _, err := NewRedis("127.0.0.1:1", time.Minute, nil); err == nil {
		t.Errorf("expected an error for an unreachable server")
	}
}
