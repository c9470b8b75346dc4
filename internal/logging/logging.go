// Package logging wires the relay's leveled console logger, optionally
// mirrored to a second file sink when RELAY_LOG_FILE is set.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New builds the relay's logger. When logFile is non-empty, log lines are
// written to both stderr and that file; debug-level output only appears
// when debug is true, mirroring the original's compiled-out LogDebug in
// release builds.
func New(logFile string, debug bool) (*slog.Logger, error) {
	writers := []io.Writer{os.Stderr}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}
