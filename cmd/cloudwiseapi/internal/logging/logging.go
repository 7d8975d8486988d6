// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// New returns a logger writing to stderr. Development uses human-readable text,
// every other environment emits JSON lines. Unknown levels fall back to info.
func New(level, environment string) *log.Logger {
	return newLogger(os.Stderr, level, environment)
}

func newLogger(out io.Writer, level, environment string) *log.Logger {
	logger := log.New()
	logger.SetOutput(out)

	if environment == "development" {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// Audit returns an entry tagged for audit pipelines.
func Audit(logger log.FieldLogger, action string) *log.Entry {
	return logger.WithFields(log.Fields{"audit": true, "action": action})
}
