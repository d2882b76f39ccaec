// Package registration is the client for the external participant
// registration service. It forwards the participant's form as a multipart
// body and returns the participant id the service assigns.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
)

// Kind classifies a gateway failure.
type Kind int

const (
	// KindTransport means the call could not be completed.
	KindTransport Kind = iota + 1
	// KindDecode means the reply was not the expected JSON document.
	KindDecode
	// KindRejected means the service answered with a non-success status.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport failure"
	case KindDecode:
		return "decode failure"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is returned by Client.Register for every failed call.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status of the reply; zero for transport failures
	Message string // user-facing message
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registration %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("registration %s (%d): %s", e.Kind, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so the package sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrTransport = &Error{Kind: KindTransport}
	ErrDecode    = &Error{Kind: KindDecode}
	ErrRejected  = &Error{Kind: KindRejected}
)

// reply is the JSON document the registration service answers with.
type reply struct {
	ID      json.RawMessage `json:"id"`
	Message json.RawMessage `json:"message"`
}

// Client talks to the registration service over HTTP.
type Client struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

// NewClient constructs a Client that posts to url with the given deadline.
func NewClient(url string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Register forwards form to the registration service on behalf of the caller
// identified by referer. It returns the participant id from the reply, which
// may be empty if the service did not include one.
func (c *Client) Register(ctx context.Context, referer string, form model.Form) (string, error) {
	body, contentType, err := encodeForm(form)
	if err != nil {
		return "", &Error{Kind: KindTransport, Message: "failed to encode form", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", &Error{Kind: KindTransport, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Referer", referer)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransport, Message: "failed to fetch", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "failed to read reply", Err: err}
	}

	// The reply is decoded before the status is checked: an error reply that
	// is not JSON is a decode failure carrying the reply's status.
	var rep reply
	if err := json.Unmarshal(raw, &rep); err != nil {
		c.log.Warn("registration reply is not JSON",
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(raw)),
		)
		return "", &Error{Kind: KindDecode, Status: resp.StatusCode, Message: "failed to parse JSON", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := messageText(rep.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &Error{Kind: KindRejected, Status: resp.StatusCode, Message: msg}
	}

	return participantID(rep.ID), nil
}

// participantID accepts the id as a JSON string or number. A numeric zero
// is not a valid id.
func participantID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if f, err := n.Float64(); err == nil && f == 0 {
			return ""
		}
		return n.String()
	}
	return ""
}

// messageText renders the reply's message: strings as is, null as empty,
// anything else as its compact JSON text.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil || buf.String() == "null" {
		return ""
	}
	return buf.String()
}

// encodeForm writes every form field as a multipart part, in key order so
// the body is reproducible.
func encodeForm(form model.Form) (io.Reader, string, error) {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range keys {
		if err := w.WriteField(k, form.Value(k)); err != nil {
			return nil, "", fmt.Errorf("write field %q: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
