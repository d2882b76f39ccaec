package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
)

// SQLiteStore keeps resource documents in an embedded SQLite database.
// Used for local development and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore constructs a SQLiteStore over a handle from
// database.OpenSQLite.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// AtomicUpdate applies mutate to every named resource inside one transaction.
func (s *SQLiteStore) AtomicUpdate(ctx context.Context, eventID string, names []string, mutate Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classifySQLite(err))
	}
	defer tx.Rollback()

	unique := uniqueNames(names)
	docs := make(map[string]model.Resource, len(unique))
	for _, name := range unique {
		r := model.Resource{EventID: eventID, Name: name}
		err := tx.QueryRowContext(ctx,
			`SELECT max_count, current_count FROM resource_limits WHERE event_id = ? AND name = ?`,
			eventID, name,
		).Scan(&r.Max, &r.Current)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %q: %w", name, classifySQLite(err))
		}
		docs[name] = r
	}

	next, err := stage(names, docs, mutate)
	if err != nil {
		return err
	}

	for _, name := range unique {
		_, err := tx.ExecContext(ctx,
			`UPDATE resource_limits
			 SET current_count = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			 WHERE event_id = ? AND name = ?`,
			next[name], eventID, name,
		)
		if err != nil {
			return fmt.Errorf("update %q: %w", name, classifySQLite(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classifySQLite(err))
	}
	return nil
}

// Upsert creates or overwrites a resource document.
func (s *SQLiteStore) Upsert(ctx context.Context, r model.Resource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resource_limits (event_id, name, max_count, current_count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (event_id, name)
		 DO UPDATE SET max_count = excluded.max_count, current_count = excluded.current_count`,
		r.EventID, r.Name, r.Max, r.Current,
	)
	if err != nil {
		return fmt.Errorf("upsert resource: %w", err)
	}
	return nil
}

// Get returns a single resource document or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, eventID, name string) (*model.Resource, error) {
	r := model.Resource{EventID: eventID, Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT max_count, current_count FROM resource_limits WHERE event_id = ? AND name = ?`,
		eventID, name,
	).Scan(&r.Max, &r.Current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return &r, nil
}

// classifySQLite maps a busy database (another process holds the write
// lock) to ErrConflict.
func classifySQLite(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_BUSY {
		return fmt.Errorf("%w: %s", ErrConflict, se.Error())
	}
	return err
}
