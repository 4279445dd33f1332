package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressBar renders units done out of a known total.
type ProgressBar struct {
	mu          sync.RWMutex
	total       int64
	current     int64
	width       int
	startTime   time.Time
	lastUpdate  time.Time
	description string
	finished    bool
}

func NewProgressBar(total int64, description string) *ProgressBar {
	now := time.Now()
	return &ProgressBar{total: total, width: 40, startTime: now, lastUpdate: now, description: description}
}

func (pb *ProgressBar) Add(n int64) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current += n
	if pb.current > pb.total {
		pb.current = pb.total
	}
	pb.lastUpdate = time.Now()
}

func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = pb.total
	pb.finished = true
	pb.lastUpdate = time.Now()
}

func (pb *ProgressBar) String() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	percent := 0.0
	if pb.total > 0 {
		percent = float64(pb.current) / float64(pb.total) * 100
	}
	filled := int(float64(pb.width) * percent / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)
	result := fmt.Sprintf("%s [%s] %d/%d (%.1f%%)", pb.description, bar, pb.current, pb.total, percent)

	elapsed := pb.lastUpdate.Sub(pb.startTime)
	switch {
	case pb.finished:
		result += fmt.Sprintf(" [DONE in %v]", elapsed.Round(time.Millisecond))
	case pb.current > 0 && elapsed > 0:
		perUnit := elapsed / time.Duration(pb.current)
		result += fmt.Sprintf(" ETA: %v", (perUnit * time.Duration(pb.total-pb.current)).Round(time.Second))
	}
	return result
}

// Stats counts unit outcomes for one batch run.
type Stats struct {
	mu           sync.RWMutex
	processed    int64
	ok           int64
	skipped      int64
	failed       int64
	conjunctions int64
	lastUnit     time.Time
	startTime    time.Time
	progressBar  *ProgressBar
}

func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// SetTotal enables the progress bar.
func (s *Stats) SetTotal(total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if total > 0 {
		s.progressBar = NewProgressBar(total, "Satellite-days")
	}
}

// Record adds one finished unit. status is "ok", "skipped" or "failed".
func (s *Stats) Record(status string, conjunctions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	switch status {
	case "ok":
		s.ok++
	case "skipped":
		s.skipped++
	default:
		s.failed++
	}
	s.conjunctions += int64(conjunctions)
	s.lastUnit = time.Now()
	if s.progressBar != nil {
		s.progressBar.Add(1)
	}
}

// LastUnit is when the most recent unit finished.
func (s *Stats) LastUnit() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUnit
}

func (s *Stats) Counts() (processed, ok, skipped, failed, conjunctions int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed, s.ok, s.skipped, s.failed, s.conjunctions
}

func (s *Stats) Line() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.progressBar != nil {
		return s.progressBar.String() + fmt.Sprintf(" %d conjunctions", s.conjunctions)
	}
	return fmt.Sprintf("%d satellite-days, %d conjunctions", s.processed, s.conjunctions)
}

func (s *Stats) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progressBar != nil {
		s.progressBar.Finish()
	}
}

func (s *Stats) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("Final summary: %d satellite-days in %v, %d ok, %d skipped, %d failed, %d conjunctions",
		s.processed, time.Since(s.startTime).Round(time.Millisecond), s.ok, s.skipped, s.failed, s.conjunctions)
}
