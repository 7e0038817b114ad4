package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"

	dbsql "github.com/ashaw315/hotdog-diaries-sub014/pkg/database/sql"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/logging"
)

// ApplySchema executes the embedded schema files in lexical order at startup.
// Every statement is IF NOT EXISTS, so repeated boots are safe.
func ApplySchema(ctx context.Context, db *sql.DB, logger logging.Logger) error {
	names, err := fs.Glob(dbsql.Content, "schema/*.sql")
	if err != nil {
		return fmt.Errorf("list schema files: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := dbsql.Content.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		logger.WithField("file", name).Info("Applied schema file")
	}
	return nil
}
