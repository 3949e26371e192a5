package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a case-insensitive name to a Level, defaulting to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Format defines the output format
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

// ParseFormat maps "text" to FormatText and anything else to FormatJSON
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "text") {
		return FormatText
	}
	return FormatJSON
}

// Logger is a structured logger. Output never goes to stdout by default:
// the bridge owns stdout for protocol traffic.
type Logger struct {
	zl        zerolog.Logger
	out       io.Writer
	level     Level
	component string
	format    Format
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the default logger, configured from LOG_LEVEL and LOG_FORMAT
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")), "", ParseFormat(os.Getenv("LOG_FORMAT")))
	})
	return defaultLogger
}

// New creates a new Logger
func New(out io.Writer, level Level, component string, format Format) *Logger {
	if out == nil {
		out = os.Stderr
	}
	l := &Logger{
		out:       out,
		level:     level,
		component: component,
		format:    format,
	}
	l.zl = l.build()
	return l
}

func (l *Logger) build() zerolog.Logger {
	w := l.out
	if l.format == FormatText {
		w = zerolog.ConsoleWriter{
			Out:        l.out,
			NoColor:    true,
			TimeFormat: time.RFC3339,
		}
	}
	ctx := zerolog.New(w).Level(l.level.zerolog()).With().Timestamp()
	if l.component != "" {
		ctx = ctx.Str("component", l.component)
	}
	return ctx.Logger()
}

// WithComponent creates a sub-logger with a component name
func (l *Logger) WithComponent(component string) *Logger {
	return New(l.out, l.level, component, l.format)
}

// Level returns the minimum level that is written
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) log(level Level, msg string, fields []any) {
	if level < l.level {
		return
	}

	var e *zerolog.Event
	switch level {
	case DEBUG:
		e = l.zl.Debug()
	case WARN:
		e = l.zl.Warn()
	case ERROR:
		// skip log and the exported wrapper so the caller is the user's line
		e = l.zl.Error().Caller(2)
	default:
		e = l.zl.Info()
	}

	e.Fields(toFields(fields)).Msg(msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...any) {
	l.log(DEBUG, msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...any) {
	l.log(INFO, msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...any) {
	l.log(WARN, msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...any) {
	l.log(ERROR, msg, fields)
}

// toFields converts variadic key-value pairs to a map
func toFields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	fields := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if err, isErr := args[i+1].(error); isErr && err != nil {
			fields[key] = err.Error()
			continue
		}
		fields[key] = args[i+1]
	}
	return fields
}

// Package-level convenience functions

// Info logs an info message
func Info(msg string, fields ...any) {
	Default().Info(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...any) {
	Default().Error(msg, fields...)
}

// WithComponent returns a logger with the given component name
func WithComponent(component string) *Logger {
	return Default().WithComponent(component)
}
