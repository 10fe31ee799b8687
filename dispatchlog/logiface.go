package dispatchlog

import (
	"github.com/joeycumines/logiface"
)

// logifaceEvent is the minimal logiface.Event implementation backing
// NewLogifaceLogger. It only implements the two mandatory Event methods
// (Level, AddField); every optional field-type optimisation is left to
// the embedded UnimplementedEvent, the same way logiface's own backend
// packages (e.g. logiface/logrus, logiface/slog) do for the methods they
// don't special-case.
type logifaceEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	err    error
	fields map[string]any
}

func (e *logifaceEvent) Level() logiface.Level { return e.level }

func (e *logifaceEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any, 4)
	}
	e.fields[key] = val
}

func (e *logifaceEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func (e *logifaceEvent) AddError(err error) bool {
	e.err = err
	return true
}

// toLogifaceLevel maps dispatchlog's four-level scheme onto logiface's
// syslog-derived scale.
func toLogifaceLevel(l Level) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// logifaceLogger adapts a *logiface.Logger[*logifaceEvent] into a
// dispatchlog.Logger, the direction this module needs: dispatchers log
// through the small dispatchlog seam, and NewLogifaceLogger lets that
// seam be backed by logiface's structured logging framework.
type logifaceLogger struct {
	logger *logiface.Logger[*logifaceEvent]
}

// NewLogifaceLogger builds a dispatchlog.Logger backed by logiface,
// writing each Entry as one logiface event with the category, conn ID,
// error, and any extra Fields attached as structured fields. write is
// called once per enabled log entry with the finished event's message,
// level, and fields; pass a function that hands off to whatever
// logiface.Writer (zerolog, slog, logrus, stumpy, ...) the embedding
// application has already configured.
func NewLogifaceLogger(minLevel Level, write func(level logiface.Level, msg string, fields map[string]any, err error) error) Logger {
	logger := logiface.New[*logifaceEvent](
		logiface.WithLevel[*logifaceEvent](toLogifaceLevel(minLevel)),
		logiface.WithEventFactory[*logifaceEvent](logiface.NewEventFactoryFunc(func(level logiface.Level) *logifaceEvent {
			return &logifaceEvent{level: level}
		})),
		logiface.WithWriter[*logifaceEvent](logiface.NewWriterFunc(func(e *logifaceEvent) error {
			return write(e.level, e.msg, e.fields, e.err)
		})),
	)
	return &logifaceLogger{logger: logger}
}

// IsEnabled implements Logger.
func (l *logifaceLogger) IsEnabled(level Level) bool {
	return toLogifaceLevel(level) <= l.logger.Level()
}

// Log implements Logger, translating an Entry into a logiface builder
// chain: category and connection ID ride along as ordinary string
// fields, alongside anything in Entry.Fields.
func (l *logifaceLogger) Log(e Entry) {
	b := l.logger.Build(toLogifaceLevel(e.Level))
	if e.Category != "" {
		b = b.Str("category", e.Category)
	}
	if e.ConnID != "" {
		b = b.Str("conn_id", e.ConnID)
	}
	if e.Err != nil {
		b = b.Err(e.Err)
	}
	for k, v := range e.Fields {
		b = b.Modifier(logiface.ModifierFunc[*logifaceEvent](func(evt *logifaceEvent) error {
			evt.AddField(k, v)
			return nil
		}))
	}
	b.Log(e.Message)
}
