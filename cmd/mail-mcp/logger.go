package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// setupLogger returns the process logger and a func closing its output.
// With stdio transport stdout carries the protocol, so logs go to logFile
// or are discarded.
func setupLogger(enableStdio bool, logFile, level string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var (
		out     io.Writer = os.Stdout
		closeFn           = func() {}
	)

	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closeFn = func() {
			if err := f.Close(); err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("f.Close failed: %w", err))
			}
		}
	case enableStdio:
		out = io.Discard
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	return logger, closeFn, nil
}
