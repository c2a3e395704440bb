package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/zenithdesk/chord/internal/shared"
)

// Setup scaffolds a config file and initializes the SQLite database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("✓ Created %s — fill in your Spotify client_id\n", configPath)
	} else {
		r.writePlain("✓ Config file already exists at %s\n", configPath)
	}

	if err := r.open(configPath); err != nil {
		return err
	}

	r.writePlain("✓ Database initialized at %s\n", r.config.Database.Path)
	r.writePlain("\nNext: chord auth login\n")

	return nil
}
