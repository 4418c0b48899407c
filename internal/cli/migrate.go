package cli

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/curio-sh/curio/internal/config"
	"github.com/curio-sh/curio/internal/database"
	"github.com/curio-sh/curio/internal/docstore"
	"github.com/curio-sh/curio/internal/eventlog"
	"github.com/curio-sh/curio/internal/migrate"
	"github.com/curio-sh/curio/internal/timeline"
	"github.com/curio-sh/curio/internal/watchlist"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade stored documents to the current schema version",
	Long: `Upgrade every stored document to the schema version the current
binary declares.

Run this after deploying a binary with a bumped schema version; until
then the service refuses to open the affected collections.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		return err
	}
	applyLogging(cfg.Logging.Level, cfg.Logging.Pretty)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return err
	}
	defer db.Close()

	events := eventlog.New(log.Logger)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := migrateTimeline(ctx, db, events); err != nil {
		return err
	}
	if err := migrateWatchlist(ctx, db, events); err != nil {
		return err
	}

	log.Info().Msg("Migration complete")
	return nil
}

func migrateTimeline(ctx context.Context, db *database.DB, events eventlog.Logger) error {
	repo, err := docstore.NewRepository[timeline.Message](ctx, db, docstore.Options{
		Collection:    timeline.Collection,
		SchemaVersion: timeline.SchemaVersion,
		MigrationMode: true,
		Logger:        events,
	})
	if err != nil {
		return err
	}

	n, err := migrate.Run(ctx, repo, events, func(msg *timeline.Message, from int) error {
		return timeline.UpgradeMessage(msg, from)
	})
	if err != nil {
		log.Error().Err(err).Int("migrated", n).Msg("Timeline migration failed")
		return err
	}

	log.Info().Int("migrated", n).Str("collection", timeline.Collection).Msg("Collection migrated")
	return nil
}

func migrateWatchlist(ctx context.Context, db *database.DB, events eventlog.Logger) error {
	repo, err := docstore.NewRepository[watchlist.Profile](ctx, db, docstore.Options{
		Collection:    watchlist.Collection,
		SchemaVersion: watchlist.SchemaVersion,
		MigrationMode: true,
		Logger:        events,
	})
	if err != nil {
		return err
	}

	n, err := migrate.Run(ctx, repo, events, func(p *watchlist.Profile, from int) error {
		return watchlist.UpgradeProfile(p, from)
	})
	if err != nil {
		log.Error().Err(err).Int("migrated", n).Msg("Watchlist migration failed")
		return err
	}

	log.Info().Int("migrated", n).Str("collection", watchlist.Collection).Msg("Collection migrated")
	return nil
}
