// Package logging builds the leveled logger shared by the server and CLI.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

type Options struct {
	Level     string // debug|info|warn|error
	Format    string // text|json|logfmt
	Timestamp bool
}

func New(w io.Writer, opts Options) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(opts.Level),
		Formatter:       ParseFormatter(opts.Format),
		ReportTimestamp: opts.Timestamp,
		TimeFormat:      time.RFC3339,
		Prefix:          "todolists",
	})
}

// Discard is a logger for tests and commands that should stay quiet.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

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

func ParseFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
