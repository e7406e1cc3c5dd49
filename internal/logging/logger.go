// Package logging provides structured logging for the CLI and the rpc client.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Format selects how log lines are rendered.
type Format string

const (
	// FormatAuto renders console output on a terminal and JSON otherwise.
	FormatAuto    Format = "auto"
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

const consoleTimeFormat = "15:04:05"

// Logger wraps zerolog with output-format selection.
type Logger struct {
	zlog   zerolog.Logger
	format Format
	output io.Writer // current output writer
}

// NewLogger creates a logger writing to out in the given format.
func NewLogger(out io.Writer, format Format) *Logger {
	l := &Logger{format: format}
	l.SetOutput(out)
	return l
}

// NewDefaultCLILogger logs to stderr, formatted for whatever stderr is attached to.
func NewDefaultCLILogger() *Logger {
	return NewLogger(os.Stderr, FormatAuto)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), format: FormatJSON, output: io.Discard}
}

// SetOutput changes the output writer, keeping the configured format.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	var sink io.Writer = w
	if l.useConsole(w) {
		sink = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: consoleTimeFormat,
		}
	}
	l.zlog = zerolog.New(sink).With().Timestamp().Logger()
}

func (l *Logger) useConsole(w io.Writer) bool {
	switch l.format {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Fatal returns a fatal level event.
func (l *Logger) Fatal() *zerolog.Event {
	return l.zlog.Fatal()
}

// With creates a child logger context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// WithComponent returns a child logger tagged with component=name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("component", name).Logger(),
		format: l.format,
		output: l.output,
	}
}

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// ParseLevel maps debug|info|warn|error (case-insensitive) to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
