package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gustycube/conjunctions/internal/logging"
)

func TestStats_Record(t *testing.T) {
	s := NewStats()
	s.SetTotal(4)
	s.Record("ok", 3)
	s.Record("skipped", 0)
	s.Record("failed", 0)

	processed, ok, skipped, failed, conj := s.Counts()
	if processed != 3 || ok != 1 || skipped != 1 || failed != 1 || conj != 3 {
		t.Errorf("Counts = %d %d %d %d %d", processed, ok, skipped, failed, conj)
	}
	if s.LastUnit().IsZero() {
		t.Error("LastUnit not set")
	}
	if !strings.Contains(s.Line(), "3/4") {
		t.Errorf("unexpected progress line %q", s.Line())
	}
	s.Finish()
	if !strings.Contains(s.Summary(), "3 satellite-days") {
		t.Errorf("unexpected summary %q", s.Summary())
	}
}

func TestProgressBar(t *testing.T) {
	pb := NewProgressBar(2, "days")
	pb.Add(5)
	if !strings.Contains(pb.String(), "2/2 (100.0%)") {
		t.Errorf("progress not clamped: %q", pb.String())
	}
	pb.Finish()
	if !strings.Contains(pb.String(), "DONE") {
		t.Errorf("expected DONE, got %q", pb.String())
	}
	if empty := NewProgressBar(0, "x").String(); !strings.Contains(empty, "0/0") {
		t.Errorf("unexpected empty bar %q", empty)
	}
}

func TestInteractiveLogger_ProgressLine(t *testing.T) {
	var buf bytes.Buffer
	il := NewInteractiveLogger(logging.Nop(), true)
	il.output = &buf
	il.showProgress = true
	il.SetTotal(2)

	il.Unit("ok", 1)
	if !strings.Contains(buf.String(), "1/2") {
		t.Errorf("expected progress line, got %q", buf.String())
	}
	il.Infow("unit done")
	il.Finish()
	if il.lastLine != "" {
		t.Error("progress line not cleared")
	}
}
