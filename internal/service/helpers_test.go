package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/database"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/reconcile"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/repository"
)

func newSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "limits.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repository.NewSQLiteStore(db)
}

func newTestCoordinator(store CapacityStore, opts CoordinatorOptions) *Coordinator {
	c := NewCoordinator(store, zap.NewNop(), opts)
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func seed(t *testing.T, store *repository.SQLiteStore, eventID, name string, maxSeats, current int) {
	t.Helper()
	r := model.Resource{EventID: eventID, Name: name, Max: maxSeats, Current: current}
	if err := store.Upsert(context.Background(), r); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func currentOf(t *testing.T, store *repository.SQLiteStore, eventID, name string) int {
	t.Helper()
	r, err := store.Get(context.Background(), eventID, name)
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	return r.Current
}

// scriptedStore wraps a real store, counts calls and can fail chosen calls.
type scriptedStore struct {
	inner CapacityStore

	mu     sync.Mutex
	calls  int
	fail   map[int]error  // 1-based call number → error
	before map[int]func() // runs before the call reaches inner
}

func (s *scriptedStore) AtomicUpdate(ctx context.Context, eventID string, names []string, mutate repository.Mutation) error {
	s.mu.Lock()
	s.calls++
	err := s.fail[s.calls]
	hook := s.before[s.calls]
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}
	if s.inner == nil {
		return errors.New("no store configured")
	}
	return s.inner.AtomicUpdate(ctx, eventID, names, mutate)
}

func (s *scriptedStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeGateway stands in for the registration service.
type fakeGateway struct {
	mu    sync.Mutex
	id    string
	err   error
	calls int
	last  model.Form
}

func (g *fakeGateway) Register(ctx context.Context, referer string, form model.Form) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = form
	return g.id, g.err
}

// fakeReporter records leaks.
type fakeReporter struct {
	mu    sync.Mutex
	leaks []reconcile.Leak
}

func (r *fakeReporter) ReportLeak(ctx context.Context, leak reconcile.Leak) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaks = append(r.leaks, leak)
	return nil
}
