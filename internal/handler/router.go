package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter builds the service's HTTP surface.
func NewRouter(h *RegistrationHandler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(log))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Post("/", h.Submit)
	r.Options("/", Preflight)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}
