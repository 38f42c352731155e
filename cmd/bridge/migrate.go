package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/inbound-bridge/internal/config"
	"github.com/tbourn/inbound-bridge/internal/repo"
	"github.com/tbourn/inbound-bridge/internal/sysutil"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty)

			db, err := repo.OpenSQLite(cfg.DBPath)
			if err != nil {
				return err
			}
			if err := repo.AutoMigrate(db); err != nil {
				return err
			}
			log.Info().Str("db", cfg.DBPath).Msg("schema migrated")
			return nil
		},
	}
}
