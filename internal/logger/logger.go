package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()

	// Progress and results go to stdout, diagnostics to stderr
	Logger.SetOutput(os.Stderr)

	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	if err := SetLevel(os.Getenv("LOG_LEVEL")); err != nil {
		Warn(fmt.Sprintf("LOG_LEVEL: %v", err))
	}
}

// SetLevel sets the level by name. An empty name selects warn so the
// progress lines on stdout stay readable; unknown names also select warn
// and are reported as an error.
func SetLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		Logger.SetLevel(logrus.DebugLevel)
	case "info":
		Logger.SetLevel(logrus.InfoLevel)
	case "", "warn", "warning":
		Logger.SetLevel(logrus.WarnLevel)
	case "error":
		Logger.SetLevel(logrus.ErrorLevel)
	default:
		Logger.SetLevel(logrus.WarnLevel)
		return fmt.Errorf("unknown log level %q (use debug, info, warn or error)", level)
	}
	return nil
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

// Warn logs a warning message
func Warn(msg string) {
	Logger.Warn(msg)
}
