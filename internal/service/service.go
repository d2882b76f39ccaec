// Package service implements the registration workflow: validate the
// submission, reserve master class seats, register the participant with the
// external service and release the seats again if registration fails.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/config"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/model"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/reconcile"
)

// compensationTimeout bounds the release transaction. It runs detached from
// the caller's context so a client hanging up cannot leave seats reserved.
const compensationTimeout = 10 * time.Second

// Registrar registers a participant with the external service.
type Registrar interface {
	Register(ctx context.Context, referer string, form model.Form) (string, error)
}

// LeakReporter is told about seats a failed compensation left reserved.
type LeakReporter interface {
	ReportLeak(ctx context.Context, leak reconcile.Leak) error
}

// RegistrationService sequences reserve → register → release.
type RegistrationService struct {
	seats   *Coordinator
	gateway Registrar
	leaks   LeakReporter
	fields  config.FieldsConfig
	log     *zap.Logger
	tracer  trace.Tracer
}

// NewRegistrationService constructs a RegistrationService. leaks may be nil,
// in which case leaked capacity is only logged.
func NewRegistrationService(
	seats *Coordinator,
	gateway Registrar,
	leaks LeakReporter,
	fields config.FieldsConfig,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		seats:   seats,
		gateway: gateway,
		leaks:   leaks,
		fields:  fields,
		log:     log,
		tracer:  defaultTracer,
	}
}

// Submit runs one registration. It returns the participant id on success.
//
// The returned error is the first terminal failure: a *ValidationError, a
// *ReservationError from Reserve, a gateway error, or
// ErrMissingParticipantID. A failed release never replaces it.
func (s *RegistrationService) Submit(ctx context.Context, sub model.Submission) (string, error) {
	attemptID := uuid.NewString()
	log := s.log.With(zap.String("attempt_id", attemptID))

	ctx, span := s.tracer.Start(ctx, "Submit", trace.WithAttributes(
		attribute.String("attempt.id", attemptID),
	))
	defer span.End()

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	names, err := s.validate(sub)
	if err != nil {
		log.Debug("submission rejected", zap.Error(err))
		return fail(err)
	}

	eventID := sub.Form.Value(s.fields.EventID)
	span.SetAttributes(attribute.String("event.id", eventID))

	if len(names) > 0 {
		if err := s.seats.Reserve(ctx, eventID, names); err != nil {
			log.Info("reservation refused",
				zap.String("event_id", eventID),
				zap.Strings("resources", names),
				zap.Error(err),
			)
			return fail(err)
		}
		log.Info("seats reserved", zap.String("event_id", eventID), zap.Strings("resources", names))
	}

	id, err := s.gateway.Register(ctx, sub.Referer, sub.Form)
	if err == nil && id == "" {
		err = ErrMissingParticipantID
	}
	if err != nil {
		log.Error("registration failed", zap.String("event_id", eventID), zap.Error(err))
		if len(names) > 0 {
			s.compensate(ctx, log, attemptID, eventID, names, err)
		}
		return fail(err)
	}

	log.Info("participant registered", zap.String("event_id", eventID), zap.String("participant_id", id))
	return id, nil
}

// validate checks the submission and returns the resource names to reserve,
// which is empty when the participant opted out of master classes.
func (s *RegistrationService) validate(sub model.Submission) ([]string, error) {
	if strings.TrimSpace(sub.Referer) == "" {
		return nil, ErrMissingReferer
	}

	form := sub.Form
	wantsResources := form.Truthy(s.fields.Resources)
	if !wantsResources {
		if s.fields.ResourceNotNeeded != "" && form.Truthy(s.fields.ResourceNotNeeded) {
			return nil, nil
		}
		return nil, ErrMissingResources
	}

	raw, ok := form[s.fields.Resources].(string)
	if !ok {
		return nil, ErrMalformedResources
	}
	names := ParseResourceList(raw)
	if len(names) == 0 {
		return nil, &ReservationError{Kind: KindEmpty}
	}
	if form.Value(s.fields.EventID) == "" {
		return nil, ErrMissingEventID
	}
	return names, nil
}

// compensate releases the seats taken for a registration that failed. Its
// own failure is logged and reported, never returned.
func (s *RegistrationService) compensate(ctx context.Context, log *zap.Logger, attemptID, eventID string, names []string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := s.seats.Release(ctx, eventID, names)
	if err == nil {
		log.Info("seats released", zap.String("event_id", eventID), zap.Strings("resources", names))
		return
	}

	log.Error("compensation failed, seats left reserved",
		zap.String("event_id", eventID),
		zap.Strings("resources", names),
		zap.NamedError("cause", cause),
		zap.Error(err),
		zap.Bool("underflow", errors.Is(err, ErrUnderflow)),
	)
	if s.leaks == nil {
		return
	}
	leak := reconcile.Leak{
		AttemptID:    attemptID,
		EventID:      eventID,
		Resources:    names,
		Cause:        cause.Error(),
		ReleaseError: err.Error(),
		OccurredAt:   time.Now().UTC(),
	}
	if rerr := s.leaks.ReportLeak(ctx, leak); rerr != nil {
		log.Error("leak report failed", zap.Error(rerr))
	}
}
