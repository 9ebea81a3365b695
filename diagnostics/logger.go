package diagnostics

import (
	"github.com/sirupsen/logrus"
)

// Logger receives plain diagnostic lines.
type Logger interface {
	Printf(format string, args ...any)
}

// Nop discards every line.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Printf writes to l if it is non-nil.
func Printf(l Logger, format string, args ...any) {
	if l == nil {
		return
	}
	l.Printf(format, args...)
}

type logrusLogger struct {
	entry logrus.FieldLogger
}

// NewLogrusLogger adapts a logrus logger or entry to Logger. Lines are written at debug level
// with a component=erede field.
func NewLogrusLogger(l logrus.FieldLogger) Logger {
	if l == nil {
		return Nop
	}
	return logrusLogger{entry: l.WithField("component", "erede")}
}

func (l logrusLogger) Printf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}
