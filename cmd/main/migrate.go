package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/storage"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the contacts and exhausted events schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Database.PostgresDSN == "" {
				return fmt.Errorf("missing required config: database.postgresDSN")
			}

			repo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, false)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			defer repo.Close(context.Background())

			start := time.Now()
			if err := repo.Migrate(ctx); err != nil {
				return err
			}
			logger.Log.Info("Schema migrated", zap.Duration("duration", time.Since(start)))
			return nil
		},
	}
}
