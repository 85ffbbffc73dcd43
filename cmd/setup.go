package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotalyze/internal/shared"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlain("Set credentials.spotify.client_id, client_secret & session.secret (or %s, %s, %s)\n",
		shared.EnvSpotifyClientID, shared.EnvSpotifyClientSecret, shared.EnvSessionSecret)
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenDatabase(ctx, config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(ctx, db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v (%d migrations applied)", config.Database.Path, applied)
	return r.writePlain("✓ Database ready at %s\n", config.Database.Path)
}

// SetupRollback reverts the newest applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(ctx, config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := shared.RollbackMigration(ctx, db)
	if err != nil {
		return err
	}
	r.logger.Info("migration rolled back", "path", config.Database.Path, "version", version)
	return r.writePlain("✓ Rolled back migration %04d\n", version)
}
