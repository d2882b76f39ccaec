package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/registration"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/service"
)

type fakeSubmitter struct {
	err  error
	last *model.Submission
}

func (f *fakeSubmitter) Submit(ctx context.Context, sub model.Submission) (string, error) {
	f.last = &sub
	if f.err != nil {
		return "", f.err
	}
	return "p-1", nil
}

func newTestRouter(svc Submitter) http.Handler {
	return NewRouter(NewRegistrationHandler(svc, zap.NewNop()), zap.NewNop())
}

func post(t *testing.T, h http.Handler, body, referer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error entry, got %+v", resp)
	}
	return resp.Errors[0].Message
}

func TestSubmit_Success(t *testing.T) {
	svc := &fakeSubmitter{}
	rec := post(t, newTestRouter(svc), `{"eventId": 42, "мастер-класс": "Pottery", "age": 31.50}`, "https://events.example/form")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Headers") != "*" {
		t.Error("expected CORS marker")
	}
	if svc.last.Referer != "https://events.example/form" {
		t.Errorf("unexpected referer %q", svc.last.Referer)
	}
	if got := svc.last.Form.Value("age"); got != "31.50" {
		t.Errorf("expected number text preserved, got %q", got)
	}
	if got := svc.last.Form.Value("eventId"); got != "42" {
		t.Errorf("expected eventId 42, got %q", got)
	}
}

func TestSubmit_MissingRefererNeverReachesService(t *testing.T) {
	svc := &fakeSubmitter{}
	rec := post(t, newTestRouter(svc), `{"eventId": "42"}`, "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.last != nil {
		t.Error("service must not be called")
	}
}

func TestSubmit_InvalidBody(t *testing.T) {
	for _, body := range []string{"", "not json", `["a"]`} {
		svc := &fakeSubmitter{}
		rec := post(t, newTestRouter(svc), body, "https://events.example/form")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", body, rec.Code)
		}
		if svc.last != nil {
			t.Errorf("%q: service must not be called", body)
		}
	}
}

func TestSubmit_NullBodyIsEmptyForm(t *testing.T) {
	svc := &fakeSubmitter{err: service.ErrMissingResources}
	rec := post(t, newTestRouter(svc), "null", "https://events.example/form")

	if rec.Code != http.StatusRequestTimeout {
		t.Fatalf("expected 408, got %d", rec.Code)
	}
	if svc.last.Form == nil {
		t.Error("expected a non-nil form")
	}
}

func TestSubmit_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"missing resources", service.ErrMissingResources, 408, msgNoResourceInfo},
		{"malformed resources", service.ErrMalformedResources, 407, msgBadResourceList},
		{"empty list", &service.ReservationError{Kind: service.KindEmpty}, 407, msgBadResourceList},
		{"missing event id", service.ErrMissingEventID, 400, msgMissingEventID},
		{"unknown resource", &service.ReservationError{Kind: service.KindNotFound, Resource: "Welding"}, 404, msgUnknownResource},
		{"capacity", &service.ReservationError{Kind: service.KindCapacityExceeded, Resource: "Pottery"}, 409, msgNoSeatsLeft},
		{"store", &service.ReservationError{Kind: service.KindStore, Err: errors.New("db down")}, 500, "store failure: db down"},
		{"transport", &registration.Error{Kind: registration.KindTransport, Message: "failed to fetch", Err: errors.New("refused")}, 500, msgFailedToFetch},
		{"decode on error status", &registration.Error{Kind: registration.KindDecode, Status: 503}, 503, msgFailedToParse},
		{"decode on success status", &registration.Error{Kind: registration.KindDecode, Status: 200}, 502, msgFailedToParse},
		{"rejected", &registration.Error{Kind: registration.KindRejected, Status: 422, Message: "email already used"}, 422, "email already used"},
		{"missing participant id", service.ErrMissingParticipantID, 500, msgNoParticipantID},
		{"unclassified", errors.New("boom"), 500, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, newTestRouter(&fakeSubmitter{err: tt.err}), `{"eventId": "42"}`, "https://events.example/form")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := errorMessage(t, rec); got != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, got)
			}
			if rec.Header().Get("Access-Control-Allow-Headers") != "*" {
				t.Error("expected CORS marker on error responses")
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	newTestRouter(&fakeSubmitter{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Headers") != "*" {
		t.Error("expected CORS marker")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/", nil)
		rec := httptest.NewRecorder()
		newTestRouter(&fakeSubmitter{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", method, rec.Code)
		}
		if rec.Header().Get("Allow") != http.MethodPost {
			t.Errorf("%s: expected Allow: POST, got %q", method, rec.Header().Get("Allow"))
		}
		if rec.Header().Get("Access-Control-Allow-Headers") != "*" {
			t.Errorf("%s: expected CORS marker", method)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	newTestRouter(&fakeSubmitter{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
