package database

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

// OpenSQLite opens the embedded store at path and applies the schema.
//
// SQLite admits a single writer, so the pool is capped at one connection and
// transactions queue in database/sql instead of failing with SQLITE_BUSY.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}
