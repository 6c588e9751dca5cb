// Package logger constructs the structured logger passed through ponder.
package logger

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w without timestamps. verbose forces
// debug level regardless of level.
func New(w io.Writer, level string, verbose bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          "ponder",
		ReportTimestamp: false,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(ParseLevel(level))
	}
	return l
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ParseLevel maps a level name to a log.Level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
