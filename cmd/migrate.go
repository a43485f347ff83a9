package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/homefix/booking-core/internal/model"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(context.Background(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := model.AutoMigrate(a.db); err != nil {
				return err
			}
			a.logger.Info("migrations applied")
			return nil
		},
	}
}
