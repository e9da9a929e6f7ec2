// Package logruslog backs the go-logger contracts with a logrus logger, so the
// integration runtime can emit JSON logs suitable for log shipping.
package logruslog

import (
	"context"
	"fmt"
	"io"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/sirupsen/logrus"
)

type Option func(*logrus.Logger)

func WithLevel(level string) Option {
	return func(l *logrus.Logger) {
		if parsed, err := logrus.ParseLevel(strings.TrimSpace(level)); err == nil {
			l.SetLevel(parsed)
		}
	}
}

func WithOutput(w io.Writer) Option {
	return func(l *logrus.Logger) {
		if w != nil {
			l.SetOutput(w)
		}
	}
}

// NewJSON builds a logrus logger with the JSON formatter.
func NewJSON(opts ...Option) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Provider hands out named loggers. The name is attached as the "logger" field.
type Provider struct {
	base *logrus.Logger
}

func NewProvider(base *logrus.Logger) *Provider {
	if base == nil {
		base = NewJSON()
	}
	return &Provider{base: base}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	entry := logrus.NewEntry(p.base)
	if name = strings.TrimSpace(name); name != "" {
		entry = entry.WithField("logger", name)
	}
	return &Logger{entry: entry}
}

// Logger adapts a logrus entry. Variadic args are read as key/value pairs.
type Logger struct {
	entry *logrus.Entry
}

func New(base *logrus.Logger) *Logger {
	if base == nil {
		base = NewJSON()
	}
	return &Logger{entry: logrus.NewEntry(base)}
}

func (l *Logger) Trace(msg string, args ...any) { l.log(logrus.TraceLevel, msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.log(logrus.DebugLevel, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.log(logrus.InfoLevel, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(logrus.WarnLevel, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.log(logrus.ErrorLevel, msg, args) }

// Fatal logs at fatal level without exiting; process lifetime belongs to the caller.
func (l *Logger) Fatal(msg string, args ...any) { l.log(logrus.FatalLevel, msg, args) }

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	return &Logger{entry: l.entry.WithContext(ctx)}
}

func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) log(level logrus.Level, msg string, args []any) {
	entry := l.entry
	if len(args) > 0 {
		entry = entry.WithFields(argsToFields(args))
	}
	// Entry.Log never exits, even at fatal level.
	entry.Log(level, msg)
}

func argsToFields(args []any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			fields["extra"] = args[i]
			break
		}
		value := args[i+1]
		if err, ok := value.(error); ok && err != nil {
			value = err.Error()
		}
		fields[key] = value
	}
	return fields
}
