package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
)

// PostgresStore keeps resource documents in the resource_limits table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// AtomicUpdate applies mutate to every named resource inside one transaction.
//
// All rows are locked up front with SELECT … FOR UPDATE, ordered by name so
// two requests naming the same resources in different orders lock them in
// the same sequence. A concurrent booking for any of the rows blocks until
// this transaction commits or rolls back, which is what keeps current_count
// from ever passing max_count.
func (s *PostgresStore) AtomicUpdate(ctx context.Context, eventID string, names []string, mutate Mutation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classifyPG(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT name, max_count, current_count
		 FROM resource_limits
		 WHERE event_id = $1 AND name = ANY($2)
		 ORDER BY name
		 FOR UPDATE`,
		eventID, uniqueNames(names),
	)
	if err != nil {
		return fmt.Errorf("lock resource rows: %w", classifyPG(err))
	}
	docs := make(map[string]model.Resource, len(names))
	for rows.Next() {
		r := model.Resource{EventID: eventID}
		if err := rows.Scan(&r.Name, &r.Max, &r.Current); err != nil {
			rows.Close()
			return fmt.Errorf("scan resource: %w", err)
		}
		docs[r.Name] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read resources: %w", classifyPG(err))
	}

	next, err := stage(names, docs, mutate)
	if err != nil {
		return err
	}

	for _, name := range uniqueNames(names) {
		_, err := tx.Exec(ctx,
			`UPDATE resource_limits
			 SET current_count = $3, updated_at = now()
			 WHERE event_id = $1 AND name = $2`,
			eventID, name, next[name],
		)
		if err != nil {
			return fmt.Errorf("update %q: %w", name, classifyPG(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", classifyPG(err))
	}
	return nil
}

// Upsert creates or overwrites a resource document. It is an administrative
// operation and does not check the occupancy invariant beyond the table
// constraints.
func (s *PostgresStore) Upsert(ctx context.Context, r model.Resource) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO resource_limits (event_id, name, max_count, current_count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (event_id, name)
		 DO UPDATE SET max_count = EXCLUDED.max_count,
		               current_count = EXCLUDED.current_count,
		               updated_at = now()`,
		r.EventID, r.Name, r.Max, r.Current,
	)
	if err != nil {
		return fmt.Errorf("upsert resource: %w", err)
	}
	return nil
}

// Get returns a single resource document or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, eventID, name string) (*model.Resource, error) {
	r := model.Resource{EventID: eventID, Name: name}
	err := s.db.QueryRow(ctx,
		`SELECT max_count, current_count FROM resource_limits WHERE event_id = $1 AND name = $2`,
		eventID, name,
	).Scan(&r.Max, &r.Current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return &r, nil
}

// classifyPG maps serialization failures and deadlocks to ErrConflict.
func classifyPG(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}
