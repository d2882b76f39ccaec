// Package handler contains chi HTTP handlers that translate the inbound
// registration call to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/registration"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/service"
)

// User-facing messages. The registration form is Russian-language.
const (
	msgNoResourceInfo   = "Нет информации о мастер-классе"
	msgBadResourceList  = "Ошибка передачи данных"
	msgUnknownResource  = "Ошибка в указании названия мастер-класса"
	msgNoSeatsLeft      = "На выбранный мастер-класс закончились места"
	msgNoParticipantID  = "Не был получен ID пользователя"
	msgFailedToFetch    = "Failed to fetch"
	msgFailedToParse    = "Failed to parse JSON"
	msgMissingReferer   = "missing Referer header"
	msgMissingEventID   = "missing event id"
	msgInvalidBody      = "invalid request body"
	msgMethodNotAllowed = "method not allowed"
)

// Submitter runs one registration.
type Submitter interface {
	Submit(ctx context.Context, sub model.Submission) (string, error)
}

// RegistrationHandler serves the inbound registration call.
type RegistrationHandler struct {
	svc Submitter
	log *zap.Logger
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc Submitter, log *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.NewErrorResponse(msg))
}

// decodeForm reads the body as a JSON object. Numbers stay json.Number so
// they are forwarded in their original text.
func decodeForm(w http.ResponseWriter, r *http.Request) (model.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var form model.Form
	if err := dec.Decode(&form); err != nil {
		return nil, err
	}
	if form == nil {
		form = model.Form{}
	}
	return form, nil
}

// Submit handles POST /
// Reserves the requested master classes and registers the participant.
func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	referer := r.Header.Get("Referer")
	if referer == "" {
		writeError(w, http.StatusBadRequest, msgMissingReferer)
		return
	}

	form, err := decodeForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody+": "+err.Error())
		return
	}

	_, err = h.svc.Submit(r.Context(), model.Submission{Referer: referer, Form: form})
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("submission failed", zap.Int("status", status), zap.Error(err))
		}
		writeError(w, status, msg)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Preflight handles OPTIONS /
func Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// MethodNotAllowed answers every method other than POST and OPTIONS.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

// statusFor maps a Submit failure onto the response status and message.
func statusFor(err error) (int, string) {
	var (
		verr *service.ValidationError
		rerr *service.ReservationError
		gerr *registration.Error
	)
	switch {
	case errors.As(err, &verr):
		switch verr.Kind {
		case service.KindMissingResources:
			return http.StatusRequestTimeout, msgNoResourceInfo
		case service.KindMalformedResources:
			return http.StatusProxyAuthRequired, msgBadResourceList
		case service.KindMissingEventID:
			return http.StatusBadRequest, msgMissingEventID
		default:
			return http.StatusBadRequest, msgMissingReferer
		}

	case errors.As(err, &rerr):
		switch rerr.Kind {
		case service.KindEmpty:
			return http.StatusProxyAuthRequired, msgBadResourceList
		case service.KindNotFound:
			return http.StatusNotFound, msgUnknownResource
		case service.KindCapacityExceeded:
			return http.StatusConflict, msgNoSeatsLeft
		default:
			return http.StatusInternalServerError, rerr.Error()
		}

	case errors.As(err, &gerr):
		switch gerr.Kind {
		case registration.KindTransport:
			return http.StatusInternalServerError, msgFailedToFetch
		case registration.KindDecode:
			if gerr.Status < http.StatusBadRequest {
				return http.StatusBadGateway, msgFailedToParse
			}
			return gerr.Status, msgFailedToParse
		default:
			return gerr.Status, gerr.Message
		}

	case errors.Is(err, service.ErrMissingParticipantID):
		return http.StatusInternalServerError, msgNoParticipantID
	}

	return http.StatusInternalServerError, err.Error()
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
