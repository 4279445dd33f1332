// Package dedup suppresses conjunction rows already appended by an earlier,
// interrupted run.
package dedup

// Interface is a set of row keys. Has only checks; Seen records key and
// reports whether it was already present. Callers record a row only after
// it is durably written.
type Interface interface {
	Has(key string) bool
	Seen(key string) bool
}
