// Package dispatchlog provides the structured logging seam dispatchers
// use for tracing their tick-by-tick behavior. It follows the same shape
// as an event-loop's own logging seam: a minimal package-local interface
// with a no-op default, so a caller can wire in whatever structured
// logging framework it already uses without this module depending on
// one directly. See logiface.go for the first-party adapter onto
// github.com/joeycumines/logiface.
package dispatchlog

import (
	"fmt"
	"sync/atomic"
)

// Level is the severity of a log Entry.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// Entry is one structured log record.
type Entry struct {
	Level    Level
	Category string // "pipeline", "multiplex", "inflight", "reactor"
	ConnID   string
	Message  string
	Err      error
	Fields   map[string]any
}

// Logger is the structured logging interface dispatchers write to.
type Logger interface {
	Log(e Entry)
	IsEnabled(level Level) bool
}

// NoOp is a Logger that discards everything. It is the default used when
// no Logger has been configured, so dispatchers never need a nil check.
type NoOp struct{}

// Log implements Logger by discarding e.
func (NoOp) Log(Entry) {}

// IsEnabled implements Logger, always reporting false, so callers can
// skip building an Entry on the fast path.
func (NoOp) IsEnabled(Level) bool { return false }

var noop Logger = NoOp{}

// Default returns the package-level default Logger, initially a NoOp.
func Default() Logger { return noop }

// SetDefault replaces the package-level default Logger. Passing nil
// restores the NoOp default. This mirrors the event-loop-style global
// logging seam: dispatchers constructed without an explicit logger
// option fall back to whatever was last set here.
func SetDefault(logger Logger) {
	if logger == nil {
		logger = NoOp{}
	}
	defaultLogger.Store(&logger)
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	SetDefault(NoOp{})
}

// resolve returns logger if non-nil, else the package default.
func resolve(logger Logger) Logger {
	if logger != nil {
		return logger
	}
	if p := defaultLogger.Load(); p != nil {
		return *p
	}
	return NoOp{}
}

// Debugf is a convenience for emitting a formatted debug-level Entry
// through logger (or the package default, if nil), skipping the
// fmt.Sprintf call entirely when the level is disabled.
func Debugf(logger Logger, category, connID string, format string, args ...any) {
	emit(logger, LevelDebug, category, connID, nil, format, args...)
}

// Infof is the info-level counterpart to Debugf.
func Infof(logger Logger, category, connID string, format string, args ...any) {
	emit(logger, LevelInfo, category, connID, nil, format, args...)
}

// Warnf is the warn-level counterpart to Debugf.
func Warnf(logger Logger, category, connID string, err error, format string, args ...any) {
	emit(logger, LevelWarn, category, connID, err, format, args...)
}

// Errorf is the error-level counterpart to Debugf.
func Errorf(logger Logger, category, connID string, err error, format string, args ...any) {
	emit(logger, LevelError, category, connID, err, format, args...)
}

func emit(logger Logger, level Level, category, connID string, err error, format string, args ...any) {
	logger = resolve(logger)
	if !logger.IsEnabled(level) {
		return
	}
	logger.Log(Entry{
		Level:    level,
		Category: category,
		ConnID:   connID,
		Message:  fmt.Sprintf(format, args...),
		Err:      err,
	})
}
