package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
)

const limitsKeyPrefix = "limits:"

// RedisStore keeps each resource document in a hash with "max" and
// "current" fields under limits:<event>:<name>.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func limitsKey(eventID, name string) string {
	return limitsKeyPrefix + eventID + ":" + name
}

// AtomicUpdate applies mutate to every named resource using optimistic
// concurrency: the documents are WATCHed and read, and the staged writes go
// out in one MULTI/EXEC. If another client touched any watched key in
// between, EXEC is discarded and ErrConflict is returned.
func (s *RedisStore) AtomicUpdate(ctx context.Context, eventID string, names []string, mutate Mutation) error {
	unique := uniqueNames(names)
	keys := make([]string, len(unique))
	for i, name := range unique {
		keys[i] = limitsKey(eventID, name)
	}

	txf := func(tx *redis.Tx) error {
		docs := make(map[string]model.Resource, len(unique))
		for i, name := range unique {
			fields, err := tx.HGetAll(ctx, keys[i]).Result()
			if err != nil {
				return fmt.Errorf("read %q: %w", name, err)
			}
			if len(fields) == 0 {
				continue
			}
			r, err := parseResource(eventID, name, fields)
			if err != nil {
				return err
			}
			docs[name] = r
		}

		next, err := stage(names, docs, mutate)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, name := range unique {
				pipe.HSet(ctx, keys[i], "current", next[name])
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: watched resource changed", ErrConflict)
	}
	return err
}

// Upsert creates or overwrites a resource document.
func (s *RedisStore) Upsert(ctx context.Context, r model.Resource) error {
	err := s.client.HSet(ctx, limitsKey(r.EventID, r.Name), "max", r.Max, "current", r.Current).Err()
	if err != nil {
		return fmt.Errorf("upsert resource: %w", err)
	}
	return nil
}

// Get returns a single resource document or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, eventID, name string) (*model.Resource, error) {
	fields, err := s.client.HGetAll(ctx, limitsKey(eventID, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	r, err := parseResource(eventID, name, fields)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func parseResource(eventID, name string, fields map[string]string) (model.Resource, error) {
	r := model.Resource{EventID: eventID, Name: name}
	maxCount, err := strconv.Atoi(fields["max"])
	if err != nil {
		return r, fmt.Errorf("resource %q has malformed max %q: %w", name, fields["max"], err)
	}
	r.Max = maxCount
	if raw, ok := fields["current"]; ok {
		current, err := strconv.Atoi(raw)
		if err != nil {
			return r, fmt.Errorf("resource %q has malformed current %q: %w", name, raw, err)
		}
		r.Current = current
	}
	return r, nil
}
