package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"taskmage/internal/config"
	"taskmage/internal/selection"
	"taskmage/internal/storage"
	"taskmage/internal/ui"
)

func main() {
	cfg, err := config.LoadOrCreate(config.DefaultConfigFileName)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Printf("failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("taskmage stopped", "error", err)
		fmt.Printf("%v\n", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	store, err := storage.Open(cfg.Backend, cfg.Location())
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	ctl, err := selection.New(store, cfg.Filter, cfg.ListHeight)
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	if err := ui.Run(ctl, cfg); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// setupLogging sends structured logs to the configured file. The terminal
// belongs to the UI, so without a log file nothing is logged.
func setupLogging(cfg config.Config) (func(), error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = io.Discard
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, err
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
	return closeFn, nil
}
