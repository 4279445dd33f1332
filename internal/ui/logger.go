package ui

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gustycube/conjunctions/internal/logging"
)

// InteractiveLogger keeps a progress line on a terminal while structured
// log lines go through zap.
type InteractiveLogger struct {
	logger       *logging.Logger
	mu           sync.Mutex
	lastLine     string
	output       io.Writer
	stats        *Stats
	showProgress bool
}

func NewInteractiveLogger(logger *logging.Logger, showProgress bool) *InteractiveLogger {
	return &InteractiveLogger{
		logger:       logger,
		output:       os.Stderr,
		stats:        NewStats(),
		showProgress: showProgress && isTerminal(os.Stderr),
	}
}

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func (il *InteractiveLogger) SetTotal(total int64) {
	il.stats.SetTotal(total)
}

// Unit records a finished unit and redraws the progress line.
func (il *InteractiveLogger) Unit(status string, conjunctions int) {
	il.stats.Record(status, conjunctions)
	if !il.showProgress {
		return
	}
	il.mu.Lock()
	defer il.mu.Unlock()
	il.clearLine()
	line := il.stats.Line()
	io.WriteString(il.output, line+"\r")
	il.lastLine = line
}

func (il *InteractiveLogger) Infow(msg string, kv ...interface{}) {
	il.clearAndLog(func() { il.logger.Infow(msg, kv...) })
}

func (il *InteractiveLogger) Warnw(msg string, kv ...interface{}) {
	il.clearAndLog(func() { il.logger.Warnw(msg, kv...) })
}

func (il *InteractiveLogger) Errorw(msg string, kv ...interface{}) {
	il.clearAndLog(func() { il.logger.Errorw(msg, kv...) })
}

func (il *InteractiveLogger) clearAndLog(logFn func()) {
	il.mu.Lock()
	defer il.mu.Unlock()
	if il.showProgress {
		il.clearLine()
	}
	logFn()
}

func (il *InteractiveLogger) clearLine() {
	if il.lastLine != "" {
		io.WriteString(il.output, "\r"+strings.Repeat(" ", len([]rune(il.lastLine)))+"\r")
		il.lastLine = ""
	}
}

// Finish clears the progress line and logs the summary.
func (il *InteractiveLogger) Finish() {
	il.stats.Finish()
	il.clearAndLog(func() { il.logger.Info(il.stats.Summary()) })
}

func (il *InteractiveLogger) Stats() *Stats {
	return il.stats
}

func (il *InteractiveLogger) Sync() error {
	return il.logger.Sync()
}
