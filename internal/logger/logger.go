package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Options selects formatter and level for New.
type Options struct {
	Development bool
	Level       string
	Output      io.Writer
}

// New builds the process logger. Development gets a colored text formatter,
// everything else JSON.
func New(opts Options) *logrus.Logger {
	base := logrus.New()

	if opts.Development {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if opts.Output != nil {
		base.SetOutput(opts.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	base.SetLevel(parseLevel(opts.Level))
	return base
}

// Component returns an entry tagged with the component name.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
