package main

import (
	"github.com/spf13/cobra"

	"github.com/d60-Lab/feedline/config"
	"github.com/d60-Lab/feedline/pkg/database"
	"github.com/d60-Lab/feedline/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the accounts table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
			return err
		}
		defer logger.Sync()

		db, err := database.InitDB(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("migration done")
		return nil
	},
}
