package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/repository"
)

var (
	errNoSeats    = errors.New("no seats left")
	errBelowZero  = errors.New("occupancy would drop below zero")
	defaultTracer = otel.Tracer("masterclass-reservation/service")
)

// CapacityStore is the transactional document store the coordinator needs.
type CapacityStore interface {
	AtomicUpdate(ctx context.Context, eventID string, names []string, mutate repository.Mutation) error
}

// CoordinatorOptions tunes a Coordinator.
type CoordinatorOptions struct {
	// RetryAttempts bounds how many times a transaction is tried when the
	// store reports a conflict. Values below 1 mean a single attempt.
	RetryAttempts uint
	// NegateEventKey addresses documents under the negated event id.
	NegateEventKey bool
}

// Coordinator owns the occupancy invariants. It reserves and releases seats
// on a set of resources as one atomic step.
type Coordinator struct {
	store  CapacityStore
	log    *zap.Logger
	tracer trace.Tracer
	opts   CoordinatorOptions

	newBackOff func() backoff.BackOff
}

// NewCoordinator constructs a Coordinator over store.
func NewCoordinator(store CapacityStore, log *zap.Logger, opts CoordinatorOptions) *Coordinator {
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &Coordinator{
		store:  store,
		log:    log,
		tracer: defaultTracer,
		opts:   opts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 25 * time.Millisecond
			b.MaxInterval = 400 * time.Millisecond
			return b
		},
	}
}

// Reserve takes one seat on every named resource, or none at all.
// Names are evaluated in order and the first failure aborts the set.
func (c *Coordinator) Reserve(ctx context.Context, eventID string, names []string) error {
	return c.apply(ctx, "Reserve", eventID, names, +1)
}

// Release gives back one seat on every named resource. It is the
// compensation for a Reserve whose registration failed.
func (c *Coordinator) Release(ctx context.Context, eventID string, names []string) error {
	return c.apply(ctx, "Release", eventID, names, -1)
}

// apply moves the occupancy of every named resource by delta inside one
// store transaction.
func (c *Coordinator) apply(ctx context.Context, op, eventID string, names []string, delta int) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.StringSlice("resources", names),
	))
	defer span.End()

	if len(names) == 0 {
		err := &ReservationError{Kind: KindEmpty}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	mutate := func(r model.Resource) (int, error) {
		if delta > 0 && r.IsFull() {
			return 0, errNoSeats
		}
		next := r.Current + delta
		if next < 0 {
			return 0, errBelowZero
		}
		return next, nil
	}

	key := c.documentKey(eventID)
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.store.AtomicUpdate(ctx, key, names, mutate)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, repository.ErrConflict) {
			c.log.Debug("store conflict",
				zap.String("op", op),
				zap.String("event_id", eventID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.opts.RetryAttempts),
	)
	if err != nil {
		rerr := toReservationError(err)
		span.RecordError(rerr)
		span.SetStatus(codes.Error, rerr.Error())
		return rerr
	}

	c.log.Debug("capacity updated",
		zap.String("op", op),
		zap.String("event_id", eventID),
		zap.Strings("resources", names),
	)
	return nil
}

// documentKey is the event id under which resource documents are stored.
func (c *Coordinator) documentKey(eventID string) string {
	if !c.opts.NegateEventKey {
		return eventID
	}
	if trimmed, ok := strings.CutPrefix(eventID, "-"); ok {
		return trimmed
	}
	return "-" + eventID
}

func toReservationError(err error) *ReservationError {
	var name string
	var re *repository.ResourceError
	if errors.As(err, &re) {
		name = re.Name
	}

	kind := KindStore
	switch {
	case errors.Is(err, repository.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, errNoSeats):
		kind = KindCapacityExceeded
	case errors.Is(err, errBelowZero):
		kind = KindUnderflow
	}
	return &ReservationError{Kind: kind, Resource: name, Err: err}
}
