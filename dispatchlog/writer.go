package dispatchlog

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// WriterLogger is a plain-text Logger over any io.Writer, grounded on
// the same "one log line per Entry" shape as a bare stdout/stderr
// logger: no dependency, suitable for examples and command-line tools
// that don't otherwise need structured logging.
type WriterLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	out   io.Writer
}

// NewWriterLogger builds a WriterLogger writing Entries at level or
// above to out.
func NewWriterLogger(out io.Writer, level Level) *WriterLogger {
	l := &WriterLogger{out: out}
	l.level.Store(int32(level))
	return l
}

// SetLevel changes the minimum level written.
func (l *WriterLogger) SetLevel(level Level) { l.level.Store(int32(level)) }

// IsEnabled implements Logger.
func (l *WriterLogger) IsEnabled(level Level) bool { return int32(level) >= l.level.Load() }

// Log implements Logger.
func (l *WriterLogger) Log(e Entry) {
	if !l.IsEnabled(e.Level) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s %-8s %s", time.Now().Format("15:04:05.000"), e.Level, e.Category, e.Message)
	if e.ConnID != "" {
		fmt.Fprintf(l.out, " conn=%s", e.ConnID)
	}
	if e.Err != nil {
		fmt.Fprintf(l.out, " err=%q", e.Err.Error())
	}
	for k, v := range e.Fields {
		fmt.Fprintf(l.out, " %s=%v", k, v)
	}
	fmt.Fprintln(l.out)
}
