package service

import (
	"errors"
	"fmt"
)

// ReservationKind classifies a reserve or release failure.
type ReservationKind int

const (
	// KindEmpty means the resource list had no names after normalisation.
	KindEmpty ReservationKind = iota + 1
	// KindNotFound means a named resource does not exist for the event.
	KindNotFound
	// KindCapacityExceeded means a resource has no free seat left.
	KindCapacityExceeded
	// KindUnderflow means a release would drive occupancy below zero.
	KindUnderflow
	// KindStore means the store itself failed (connection, conflict after
	// retries, malformed document).
	KindStore
)

func (k ReservationKind) String() string {
	switch k {
	case KindEmpty:
		return "empty resource list"
	case KindNotFound:
		return "resource not found"
	case KindCapacityExceeded:
		return "capacity exceeded"
	case KindUnderflow:
		return "occupancy underflow"
	case KindStore:
		return "store failure"
	default:
		return "unknown"
	}
}

// ReservationError is returned by Coordinator.Reserve and Coordinator.Release.
type ReservationError struct {
	Kind     ReservationKind
	Resource string // offending resource, when one is known
	Err      error
}

func (e *ReservationError) Error() string {
	msg := e.Kind.String()
	if e.Resource != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Resource)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ReservationError) Unwrap() error {
	return e.Err
}

// Is matches another *ReservationError by kind.
func (e *ReservationError) Is(target error) bool {
	t, ok := target.(*ReservationError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks against reservation failures.
var (
	ErrEmpty            = &ReservationError{Kind: KindEmpty}
	ErrNotFound         = &ReservationError{Kind: KindNotFound}
	ErrCapacityExceeded = &ReservationError{Kind: KindCapacityExceeded}
	ErrUnderflow        = &ReservationError{Kind: KindUnderflow}
	ErrStore            = &ReservationError{Kind: KindStore}
)

// ValidationKind classifies a rejected submission.
type ValidationKind int

const (
	// KindMissingReferer means the call carried no Referer header.
	KindMissingReferer ValidationKind = iota + 1
	// KindMissingResources means neither a resource list nor the
	// "not needed" flag was supplied.
	KindMissingResources
	// KindMalformedResources means the resource field is not a string.
	KindMalformedResources
	// KindMissingEventID means resources were requested without an event id.
	KindMissingEventID
)

func (k ValidationKind) String() string {
	switch k {
	case KindMissingReferer:
		return "missing referer"
	case KindMissingResources:
		return "missing resource information"
	case KindMalformedResources:
		return "malformed resource list"
	case KindMissingEventID:
		return "missing event id"
	default:
		return "unknown"
	}
}

// ValidationError rejects a submission before the store is touched.
type ValidationError struct {
	Kind ValidationKind
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + e.Kind.String()
}

// Is matches another *ValidationError by kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks against validation failures.
var (
	ErrMissingReferer     = &ValidationError{Kind: KindMissingReferer}
	ErrMissingResources   = &ValidationError{Kind: KindMissingResources}
	ErrMalformedResources = &ValidationError{Kind: KindMalformedResources}
	ErrMissingEventID     = &ValidationError{Kind: KindMissingEventID}
)

// ErrMissingParticipantID is returned when the registration service accepted
// the call but did not assign a participant id.
var ErrMissingParticipantID = errors.New("participant id was not returned")
