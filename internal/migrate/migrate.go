// Package migrate upgrades stored documents to a repository's declared
// schema version in place.
package migrate

import (
	"context"
	"fmt"

	"github.com/curio-sh/curio/internal/database"
	"github.com/curio-sh/curio/internal/docstore"
	"github.com/curio-sh/curio/internal/eventlog"
)

const batchSize = 100

// UpgradeFunc reshapes one document from the version it was stored at to
// the repository's declared version. The version bump itself happens in
// the runner.
type UpgradeFunc[T any, PT docstore.Ptr[T]] func(doc PT, fromVersion int) error

// Run migrates every document below the repository's declared schema
// version and returns how many were upgraded. The repository must have
// been opened in migration mode, otherwise its construction would
// already have failed on the mismatched documents.
func Run[T any, PT docstore.Ptr[T]](ctx context.Context, repo *docstore.Repository[T, PT], logger eventlog.Logger, upgrade UpgradeFunc[T, PT]) (int, error) {
	if logger == nil {
		logger = eventlog.Nop{}
	}

	target := repo.SchemaVersion()
	if target < 0 {
		return 0, fmt.Errorf("%w: repository declares no schema version", docstore.ErrInvalidArgument)
	}

	stale := []docstore.Where{
		{Field: "schema_version", Op: database.OpLt, Value: target},
	}

	migrated := 0
	for {
		if err := ctx.Err(); err != nil {
			return migrated, err
		}

		// Always page 0: upgraded documents drop out of the filter.
		docs, err := repo.Query(ctx, stale, 0, batchSize)
		if err != nil {
			return migrated, fmt.Errorf("loading stale documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			meta := doc.Meta()
			from := meta.SchemaVersion

			if err := upgrade(doc, from); err != nil {
				return migrated, fmt.Errorf("upgrading %q from version %d: %w", meta.ID, from, err)
			}

			meta.SchemaVersion = target
			if err := repo.Update(ctx, doc); err != nil {
				return migrated, fmt.Errorf("storing %q at version %d: %w", meta.ID, target, err)
			}

			migrated++
		}

		logger.LogEvent("Migration:Batch", map[string]string{
			"collection": repo.Collection(),
			"migrated":   fmt.Sprint(migrated),
		})
	}

	logger.LogEvent("Migration:Done", map[string]string{
		"collection": repo.Collection(),
		"migrated":   fmt.Sprint(migrated),
		"version":    fmt.Sprint(target),
	})

	return migrated, nil
}
