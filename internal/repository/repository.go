// Package repository implements the capacity store: atomic multi-resource
// read-then-conditional-write over resource documents keyed by
// (event id, resource name).
//
// Every backend follows the same contract. All named documents are read
// inside one transaction before anything is written, the mutation is applied
// to each name in the order supplied, and either every staged value commits
// or none does.
package repository

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
)

// ErrNotFound is returned when a resource document does not exist.
var ErrNotFound = errors.New("resource not found")

// ErrConflict is returned when the transaction engine aborted because of a
// concurrent writer. The caller may retry.
var ErrConflict = errors.New("transaction conflict")

// Mutation computes the next occupancy count for one resource, or returns an
// error to abort the whole transaction. It must not have side effects: a
// backend may call it again when a transaction is retried.
type Mutation func(r model.Resource) (int, error)

// ResourceError ties a failure to the resource that caused it.
type ResourceError struct {
	Name string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %q: %v", e.Name, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// stage applies mutate to every name in order against the documents read in
// the current transaction and returns the values to write.
//
// A name that appears twice sees the value staged for its first occurrence,
// so "A, A" against a single free seat fails on the second token.
func stage(names []string, docs map[string]model.Resource, mutate Mutation) (map[string]int, error) {
	next := make(map[string]int, len(docs))
	for _, name := range names {
		doc, ok := docs[name]
		if !ok {
			return nil, &ResourceError{Name: name, Err: ErrNotFound}
		}
		if v, staged := next[name]; staged {
			doc.Current = v
		}
		v, err := mutate(doc)
		if err != nil {
			return nil, &ResourceError{Name: name, Err: err}
		}
		next[name] = v
	}
	return next, nil
}

// uniqueNames returns names with duplicates removed, keeping first-seen order.
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
