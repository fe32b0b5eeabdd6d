// Package logger provides the logrus-backed implementation of
// [types.Logger] used in production, plus a discard logger for tests.
package logger

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/slackmgr/integrations/types"
)

type logrusLogger struct {
	entry *logrus.Entry
}

// New creates a [types.Logger] writing JSON entries to w at the given
// level. Unknown level strings fall back to info.
func New(w io.Writer, level string) types.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Discard returns a [types.Logger] that drops everything. It is
// intended for tests.
func Discard() types.Logger {
	return New(io.Discard, "panic")
}

func (l *logrusLogger) WithField(key string, value any) types.Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithError(err error) types.Logger {
	return &logrusLogger{entry: l.entry.WithError(err)}
}

func (l *logrusLogger) Debug(args ...any) { l.entry.Debug(args...) }
func (l *logrusLogger) Info(args ...any)  { l.entry.Info(args...) }
func (l *logrusLogger) Warn(args ...any)  { l.entry.Warn(args...) }
func (l *logrusLogger) Error(args ...any) { l.entry.Error(args...) }

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
