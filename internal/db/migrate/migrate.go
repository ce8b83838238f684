// Package migrate applies the embedded schema to PostgreSQL or SQLite.
// Every statement is idempotent, so Apply is safe to run on each start.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed sqlite/*.sql
var sqliteFS embed.FS

// Postgres applies the PostgreSQL schema through pool.
func Postgres(ctx context.Context, pool *pgxpool.Pool) error {
	return apply(postgresFS, "postgres", func(stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	})
}

// SQLite applies the SQLite schema through db.
func SQLite(ctx context.Context, db *sql.DB) error {
	return apply(sqliteFS, "sqlite", func(stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}

func apply(fsys embed.FS, dir string, exec func(string) error) error {
	files, err := fs.Glob(fsys, dir+"/*.sql")
	if err != nil {
		return fmt.Errorf("list %s migrations: %w", dir, err)
	}
	sort.Strings(files)

	for _, name := range files {
		body, err := fsys.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := exec(string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
