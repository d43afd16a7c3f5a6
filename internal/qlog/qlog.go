// Package qlog owns the process-wide structured logger. Per the design
// notes, the logger is one of exactly two process-level singletons (the
// other being the czar's own identity); both are initialized once, at
// startup, and are read-only for the remainder of the process.
package qlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once   sync.Once
	logger *logrus.Logger
)

// Init configures the process-wide logger. Calling it more than once has
// no effect beyond the first call; czar identity and logger setup must
// both happen before the first newUserQuery.
func Init(level logrus.Level, jsonFormat bool) {
	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(level)
		logger.SetOutput(os.Stderr)
		if jsonFormat {
			logger.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}
	})
}

// Get returns the process logger, lazily initializing it at Info level if
// Init was never called (useful for tests).
func Get() *logrus.Logger {
	Init(logrus.InfoLevel, false)
	return logger
}

// With returns a field-scoped entry, the idiom every package should use
// instead of calling Get() directly: qlog.With("chunk", chunkID).Warn(...).
func With(key string, value interface{}) *logrus.Entry {
	return Get().WithField(key, value)
}

// WithFields returns a multi-field-scoped entry.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Get().WithFields(fields)
}
