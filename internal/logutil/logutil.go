// Package logutil provides the shared structured logger used across the
// shared-memory IPC substrate, following the same logrus-based, per-package
// entry convention the teacher codebase uses throughout state/ and process/.
package logutil

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

// Get returns the process-wide logger, configuring it on first use.
func Get() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// WithComponent returns a logging entry tagged with the emitting package,
// mirroring the teacher's logrus.WithField("id", ...) idiom.
func WithComponent(name string) *logrus.Entry {
	return Get().WithField("component", name)
}
