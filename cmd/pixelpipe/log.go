package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

const (
	flagLogLevel  = "loglevel"
	flagLogFormat = "logformat"
)

func registerLoggingFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(flagLogLevel, "info", "set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringP(flagLogFormat, "f", "text", "set the log format (text, json)")
}

// baseLogger builds the logger selected by the logging flags. Logs go to the
// command's error stream so that stdout only carries results.
func baseLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := loggerLevel(cmd)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	format, err := cmd.Flags().GetString(flagLogFormat)
	if err != nil {
		return nil, err
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	case "text":
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}

func loggerLevel(cmd *cobra.Command) (slog.Level, error) {
	name, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return slog.LevelInfo, err
	}
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", name)
	}
}
