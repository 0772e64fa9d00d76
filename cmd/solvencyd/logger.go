// logger.go - Structured logging for the solvency tool
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogger installs the global logger. Console output is human readable
// on a terminal and JSON otherwise; logFile, when set, always receives JSON.
// The returned closer releases the log file.
func setupLogger(level string, logFile string) (io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var console io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Logger()
	log.Logger = logger

	// gnark logs compile/setup progress; keep it quiet unless debugging.
	if lvl <= zerolog.DebugLevel {
		gnarklogger.Set(logger.With().Str("component", "gnark").Logger())
	} else {
		gnarklogger.Disable()
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
