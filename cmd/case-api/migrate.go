package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/verifyhub/case-engine/internal/store"
	"github.com/verifyhub/case-engine/pkg/migrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, teardown, err := setup()
		if err != nil {
			return err
		}
		defer teardown()

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := migrate(cmd.Context(), db, s, cfg.Service.MigrationFolder); err != nil {
			zap.S().Fatalw("running migrations", "error", err)
		}

		zap.S().Info("Db migrated")
		return nil
	},
}

// migrate runs the goose migrations when a folder is configured and falls
// back to the model based schema otherwise. The admin principal is seeded in
// both cases.
func migrate(ctx context.Context, db *gorm.DB, s store.Store, folder string) error {
	if folder != "" {
		if err := migrations.MigrateStore(db, folder); err != nil {
			return err
		}
	} else if err := s.InitialMigration(ctx); err != nil {
		return err
	}

	return s.Seed(ctx)
}
