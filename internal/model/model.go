// Package model defines the core domain types for the masterclass
// reservation service.
package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Resource is a capacity-limited slot (a master class) belonging to an event.
// Current must stay within [0, Max] after every committed transaction.
type Resource struct {
	EventID string `json:"event_id"`
	Name    string `json:"name"`
	Max     int    `json:"max"`
	Current int    `json:"current"`
}

// IsFull returns true when no seats remain.
func (r Resource) IsFull() bool {
	return r.Current >= r.Max
}

// Form is the participant payload as decoded from the inbound JSON body.
// Values keep their JSON types; use Value or Truthy to read them.
type Form map[string]any

// Value returns the form value for key rendered as a plain string.
// Missing keys and null render as "".
func (f Form) Value(key string) string {
	v, ok := f[key]
	if !ok {
		return ""
	}
	return stringify(v)
}

// Truthy follows the loose truthiness the registration front end relies on:
// empty strings, zero, false and null are all "not set".
func (f Form) Truthy(key string) bool {
	switch v := f[key].(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case json.Number:
		n, err := v.Float64()
		return err != nil || n != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
}

// Submission is one inbound registration call after HTTP decoding.
type Submission struct {
	Referer string
	Form    Form
}

// ErrorMessage is a single user-facing error entry.
type ErrorMessage struct {
	Message string `json:"message"`
}

// ErrorResponse is the JSON error envelope the front end expects.
type ErrorResponse struct {
	Errors []ErrorMessage `json:"errors"`
}

// NewErrorResponse wraps msg in the error envelope.
func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Errors: []ErrorMessage{{Message: msg}}}
}
