// Package storagelog centralizes the logrus setup shared by the disk,
// buffer, record, and index packages so every subsystem logs through
// the same formatter and level, distinguished only by its "component" field.
package storagelog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

func root() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetLevel adjusts the shared logger's verbosity; used by the benchmark
// CLI and by tests that want to silence Debug noise.
func SetLevel(level logrus.Level) {
	root().SetLevel(level)
}

// For returns a component-scoped logger, e.g. storagelog.For("buffer").
func For(component string) *logrus.Entry {
	return root().WithField("component", component)
}
