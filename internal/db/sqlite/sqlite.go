// Package sqlite opens the embedded SQLite store. Local files and in-memory
// databases use the pure-Go modernc driver; libsql:// and wss:// DSNs are
// served by the libsql client so the same schema can live on a remote
// SQLite host.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	driverSQLite = "sqlite"
	driverLibSQL = "libsql"
)

var pragmas = []string{
	"PRAGMA busy_timeout = 5000;",
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA foreign_keys = ON;",
}

// DriverFor returns the database/sql driver name that serves dsn.
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") {
		return driverLibSQL
	}
	return driverSQLite
}

// Open opens dsn and verifies the connection. The pool is capped at one
// connection: SQLite allows a single writer, and funnelling every statement
// through one connection makes each statement atomic with respect to the
// others.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	driver := DriverFor(dsn)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == driverSQLite {
		for _, p := range pragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply %q: %w", p, err)
			}
		}
	}
	return db, nil
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure on the
// named index or table.column. An empty name matches any unique violation.
func IsUniqueViolation(err error, name string) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}

	// libsql reports constraint failures as plain text, and modernc puts the
	// offending index or column only in the message.
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return name == "" || strings.Contains(msg, name)
}

// IsForeignKeyViolation reports whether err is a FOREIGN KEY constraint
// failure. SQLite does not name the failing key in the message.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
