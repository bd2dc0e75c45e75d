package shared

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// SetupLogger returns a console logger at level. Unknown levels fall back
// to info.
func SetupLogger(level string) *log.Logger {
	return SetupLoggerTo(os.Stderr, level)
}

// SetupLoggerTo is SetupLogger writing to w. Full-screen clients log to a
// file so the terminal stays clean.
func SetupLoggerTo(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
}
