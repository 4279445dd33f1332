// Package checkpoint stores the last fully processed unit of a batch run in a
// one-line marker file.
package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/types"
)

// Name is the marker file name for one satellite.
func Name(mission, sat string) string {
	return "." + strings.ToLower(mission+"_"+sat) + "_checkpoint"
}

// Load returns the stored time. ok is false when no marker exists.
func Load(path string) (t time.Time, ok bool, err error) {
	const op = "load checkpoint"
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errs.E(errs.KindFatal, op, path, err)
	}
	t, err = types.ParseTime(strings.TrimSpace(string(b)))
	if err != nil {
		return time.Time{}, false, errs.E(errs.KindFatal, op, path, err)
	}
	return t, true, nil
}

// Save replaces the marker atomically.
func Save(path string, t time.Time) error {
	const op = "save checkpoint"
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(types.FormatTime(t) + "\n"); err != nil {
		tmp.Close()
		return errs.E(errs.KindFatal, op, path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.E(errs.KindFatal, op, path, err)
	}
	if err := tmp.Close(); err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	return nil
}

// Remove deletes the marker. A missing marker is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.E(errs.KindFatal, "remove checkpoint", path, err)
	}
	return nil
}
