package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for serving MCP over stdio.
// stdout carries the protocol stream, so records go to the log file only and
// never to stdout or stderr.
func SetupMCPMode(level string) (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.WriteToStderr = false

	cleanup, err := SetupDefault(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("MCP mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
