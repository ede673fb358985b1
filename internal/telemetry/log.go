// Package telemetry holds the single process-wide logging singleton used by
// every package in this module. It is write-only and orthogonal to
// correctness: the synthesis engine and simulator never branch on log state.
package telemetry

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLogLevel sets the logging level.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetLogOutput sets the log output destination.
func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// SetJSONFormat enables JSON log format, used by cmd/snowcap-bench so batch
// runs can be piped into a log aggregator.
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

// WithField returns a logger with a field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithFields returns a logger with multiple fields.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithRouter returns a logger with router context.
func WithRouter(router int) *logrus.Entry {
	return Logger.WithField("router", router)
}

// WithPrefix returns a logger with prefix context.
func WithPrefix(prefix int) *logrus.Entry {
	return Logger.WithField("prefix", prefix)
}

// WithGroup returns a logger with dependency-group context.
func WithGroup(groupIdx int) *logrus.Entry {
	return Logger.WithField("group", groupIdx)
}
