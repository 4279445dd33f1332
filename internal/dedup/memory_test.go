package dedup

import (
	"sync"
	"testing"
)

func TestMemory_Seen(t *testing.T) {
	d := NewMemory()
	key := "a|gako|2020-01-05T07:10:00Z|2020-01-05T07:11:00Z"

	if d.Seen(key) {
		t.Error("expected false for first occurrence")
	}
	if !d.Seen(key) {
		t.Error("expected true for second occurrence")
	}
	if d.Seen("a|fsmi|2020-01-05T07:10:00Z|2020-01-05T07:11:00Z") {
		t.Error("expected false for new key")
	}
	if d.Len() != 2 {
		t.Errorf("Len = %d, want 2", d.Len())
	}
}

func TestMemory_Concurrent(t *testing.T) {
	d := NewMemory()
	var wg sync.WaitGroup
	var mu sync.Mutex
	first := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.Seen("concurrent") {
				mu.Lock()
				first++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if first != 1 {
		t.Errorf("expected exactly 1 first occurrence, got %d", first)
	}
}

func TestMemory_HasDoesNotRecord(t *testing.T) {
	d := NewMemory()
	key := "b|fsmi|2021-03-02T10:00:00Z|2021-03-02T10:02:00Z"

	if d.Has(key) {
		t.Error("Has should be false for an unknown key")
	}
	if d.Has(key) {
		t.Error("Has must not record the key")
	}
	if d.Seen(key) {
		t.Error("Seen should be false after Has")
	}
	if !d.Has(key) {
		t.Error("Has should be true once the key is recorded")
	}
}

func BenchmarkMemory_Seen(b *testing.B) {
	d := NewMemory()
	for i := 0; i < b.N; i++ {
		d.Seen(string(rune(i)))
	}
}
