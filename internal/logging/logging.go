// Package logging constructs the loggers the rest of the tool injects.
package logging

import (
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a prefixed logger writing to stderr.
func New(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix, log.LstdFlags)
}

// NewRotating returns a prefixed logger writing to a size-rotated file.
// Watch mode uses this so long-running sessions do not grow an
// unbounded log.
func NewRotating(prefix, path string) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}, prefix, log.LstdFlags)
}

// ForWatch picks the watch-mode logger: rotating file when a path is
// configured, stderr otherwise.
func ForWatch(prefix, path string) *log.Logger {
	if path == "" {
		return New(prefix)
	}
	return NewRotating(prefix, path)
}
