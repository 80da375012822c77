package logging

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger writing to the console, plus the given log
// file when path is non-empty. An unopenable log file degrades to
// console-only rather than failing capture.
func New(path string) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	if path == "" {
		return zerolog.New(console).With().Timestamp().Logger()
	}

	os.MkdirAll(filepath.Dir(path), 0755)
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log := zerolog.New(console).With().Timestamp().Logger()
		log.Warn().Err(err).Str("path", path).Msg("log file unavailable; console only")
		return log
	}

	multi := zerolog.MultiLevelWriter(console, logFile)
	return zerolog.New(multi).With().Timestamp().Logger()
}
