package main

import (
	"github.com/SAP-F-2025/course-progression-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/course-progression-service/pkg"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closer, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return err
		}

		if err := postgres.AutoMigrate(db); err != nil {
			logger.Error("Migration failed", "error", err)
			return err
		}
		logger.Info("Migration complete")
		return nil
	},
}
