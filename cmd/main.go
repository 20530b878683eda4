package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/adder/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	configPath := ""
	if _, err := os.Stat(defaultConfigPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(defaultConfigPath); err == nil {
			config = loadedConfig
			configPath = defaultConfigPath
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}
	shared.ApplyEnv(config, ".env")

	if config.Log.File != "" {
		if fileLogger, err := shared.NewFileLogger(config.Log.File); err == nil {
			logger = fileLogger
		} else {
			logger.Warn("failed to open log file, logging to stderr", "error", err)
		}
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "adder",
		Usage:    "Add tracklists to Spotify playlists, download what's missing and follow playlist artists",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		stop()
		logger.Fatalf("application error: %v", err)
	}
}
