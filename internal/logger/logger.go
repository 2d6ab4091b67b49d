// Package logger is the structured logger shared by the upgrade framework and
// the upgrader CLI.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	// Level is a zerolog level name; empty means info.
	Level string
	// HumanReadable switches from JSON lines to zerolog's console format.
	HumanReadable bool
	// Writer defaults to stderr so that command output stays on stdout.
	Writer io.Writer
	// Component is attached to every entry when set.
	Component string
}

// Logger carries the fields of an upgrade run (target, operation, pipeline)
// down to the code that logs. A nil *Logger discards everything, so
// collaborators built without one need no guard.
type Logger struct {
	zl zerolog.Logger
}

// New builds a root logger from opts.
func New(opts Options) (*Logger, error) {
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if name := strings.ToLower(strings.TrimSpace(opts.Level)); name != "" {
		parsed, err := zerolog.ParseLevel(name)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	if opts.HumanReadable {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	fields := zerolog.New(out).Level(level).With().Timestamp()
	if opts.Component != "" {
		fields = fields.Str("component", opts.Component)
	}
	return &Logger{zl: fields.Logger()}, nil
}

// Nop returns a logger that writes nothing.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithFields returns a child logger with fields attached.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}
	child := l.zl.With()
	for key, value := range fields {
		child = child.Interface(key, value)
	}
	return &Logger{zl: child.Logger()}
}

// With is WithFields for a single field.
func (l *Logger) With(key string, value any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *Logger) Info(msg string)  { l.emit(zerolog.InfoLevel, nil, msg) }
func (l *Logger) Debug(msg string) { l.emit(zerolog.DebugLevel, nil, msg) }
func (l *Logger) Warn(msg string)  { l.emit(zerolog.WarnLevel, nil, msg) }

// Error logs msg with err attached under the "error" key. err may be nil.
func (l *Logger) Error(err error, msg string) { l.emit(zerolog.ErrorLevel, err, msg) }

func (l *Logger) emit(level zerolog.Level, err error, msg string) {
	if l == nil {
		return
	}
	event := l.zl.WithLevel(level)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}
