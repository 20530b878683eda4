package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/adder/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the embedded template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using current config", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", config.Database.Path)
}

// SetupConfig writes the embedded example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}

	r.logger.Info("config file created", "path", configPath)

	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET in .env)\n")
	r.writePlain("2. Run 'adder auth' to authorize playlist and follow access\n")
	return nil
}
