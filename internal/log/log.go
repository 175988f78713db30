// Package log is the small logging facade used across this module's
// packages. It mirrors the Debugf/Infof/Warnf/Errorf shape dubbo-go's
// common/logger package exposes, backed by logrus instead of a
// hand-rolled writer.
package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	std = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.Level = logrus.InfoLevel
	return l
}

// SetLevel adjusts the package-wide log level, e.g. logrus.DebugLevel
// for verbose pool/registry tracing.
func SetLevel(level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	std.Level = level
}

// SetLogger swaps the underlying logrus.Logger wholesale, used by
// embedders that already run logrus with their own hooks/formatter.
func SetLogger(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	std = l
}

func get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

func Debugf(format string, args ...interface{}) { get().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { get().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { get().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { get().Errorf(format, args...) }

// WithField returns a logrus.Entry for call sites that want structured
// fields (host, invocationID, interface) rather than a formatted string.
func WithField(key string, value interface{}) *logrus.Entry {
	return get().WithField(key, value)
}
