package types

// Logger is the leveled, field-aware logging interface consumed by the
// store, service, and HTTP layers. Implementations must be safe for
// concurrent use. The logger package provides a logrus-backed
// implementation; tests typically use a discard logger.
type Logger interface {
	// WithField returns a Logger that includes the given field in
	// every subsequent log entry.
	WithField(key string, value any) Logger

	// WithError returns a Logger that includes the given error in
	// every subsequent log entry.
	WithError(err error) Logger

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
