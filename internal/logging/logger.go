// Package logging provides the leveled logger used across memwatch.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Severity represents log message severity levels
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) level() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseSeverity parses "debug", "info", "warning"/"warn" or "error".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "debug":
		return SeverityDebug, nil
	case "", "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	}
	return SeverityInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger defines the logging contract
type Logger interface {
	// Log logs a message with the specified severity
	Log(severity Severity, msg string, args ...any)

	// Logf logs a formatted message with the specified severity
	Logf(severity Severity, format string, args ...any)

	// Error logs an error
	Error(err error)

	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warning(msg string, args ...any)

	// With returns a logger that adds the given attributes to every record.
	With(args ...any) Logger
}

// StdLogger implements Logger over log/slog handlers. Errors go to a
// separate stream.
type StdLogger struct {
	out *slog.Logger
	err *slog.Logger
}

// NewStdLogger creates a logger writing to stdout and stderr: text on a
// terminal, JSON lines otherwise.
func NewStdLogger(minLevel Severity) *StdLogger {
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return NewStdLoggerWithWriter(os.Stdout, os.Stderr, minLevel)
	}
	return NewJSONLogger(os.Stdout, os.Stderr, minLevel)
}

// NewJSONLogger creates a logger emitting one JSON object per record.
func NewJSONLogger(stdout, stderr io.Writer, minLevel Severity) *StdLogger {
	opts := &slog.HandlerOptions{Level: minLevel.level()}
	return &StdLogger{
		out: slog.New(slog.NewJSONHandler(stdout, opts)),
		err: slog.New(slog.NewJSONHandler(stderr, opts)),
	}
}

// NewStdLoggerWithWriter creates a logger with custom writers
func NewStdLoggerWithWriter(stdout, stderr io.Writer, minLevel Severity) *StdLogger {
	opts := &slog.HandlerOptions{Level: minLevel.level()}
	return &StdLogger{
		out: slog.New(slog.NewTextHandler(stdout, opts)),
		err: slog.New(slog.NewTextHandler(stderr, opts)),
	}
}

// Log logs a message with the specified severity
func (l *StdLogger) Log(severity Severity, msg string, args ...any) {
	target := l.out
	if severity >= SeverityError {
		target = l.err
	}
	target.Log(context.Background(), severity.level(), msg, args...)
}

// Logf logs a formatted message with the specified severity
func (l *StdLogger) Logf(severity Severity, format string, args ...any) {
	l.Log(severity, fmt.Sprintf(format, args...))
}

// Error logs an error
func (l *StdLogger) Error(err error) {
	if err != nil {
		l.Log(SeverityError, err.Error())
	}
}

func (l *StdLogger) Debug(msg string, args ...any) {
	l.Log(SeverityDebug, msg, args...)
}

func (l *StdLogger) Info(msg string, args ...any) {
	l.Log(SeverityInfo, msg, args...)
}

func (l *StdLogger) Warning(msg string, args ...any) {
	l.Log(SeverityWarning, msg, args...)
}

func (l *StdLogger) With(args ...any) Logger {
	return &StdLogger{out: l.out.With(args...), err: l.err.With(args...)}
}

// NoOpLogger is a logger that doesn't log anything
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-op logger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Log(severity Severity, msg string, args ...any)     {}
func (l *NoOpLogger) Logf(severity Severity, format string, args ...any) {}
func (l *NoOpLogger) Error(err error)                                    {}
func (l *NoOpLogger) Debug(msg string, args ...any)                      {}
func (l *NoOpLogger) Info(msg string, args ...any)                       {}
func (l *NoOpLogger) Warning(msg string, args ...any)                    {}
func (l *NoOpLogger) With(args ...any) Logger                            { return l }

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NewNoOpLogger()
	}
	return l
}
