package dedup

import "sync"

type Memory struct{ m sync.Map }

func NewMemory() *Memory { return &Memory{} }

func (d *Memory) Has(key string) bool {
	_, ok := d.m.Load(key)
	return ok
}

func (d *Memory) Seen(key string) bool {
	_, ok := d.m.LoadOrStore(key, struct{}{})
	return ok
}

// Len counts recorded keys.
func (d *Memory) Len() int {
	n := 0
	d.m.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
