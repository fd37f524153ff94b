// Package api exposes HTTP handlers for the step service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"example.com/wellnest/internal/auth"
)

// NewRouter mounts the estimator, step logging and session routes. Estimates and health checks are public;
// step and session routes require a bearer token with the matching scope.
func NewRouter(h *Handler, authCfg auth.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(WithRequestLogging(logger))

	r.Get("/healthz", healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/estimates", func(r chi.Router) {
			r.Post("/steps", h.estimateSteps)
			r.Post("/workout", h.estimateWorkout)
			r.Get("/workout/types", h.workoutTypes)
			r.Get("/sleep", h.estimateSleep)
			r.Get("/bmi", h.estimateBMI)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.NewMiddleware(authCfg, nil).Wrap)

			r.With(auth.RequireScope(auth.ScopeStepsWrite)).Post("/steps", h.saveSteps)

			r.Route("/sessions", func(r chi.Router) {
				r.With(auth.RequireScope(auth.ScopeStepsRead, auth.ScopeStepsWrite)).Get("/current", h.currentSession)
				r.Group(func(r chi.Router) {
					r.Use(auth.RequireScope(auth.ScopeStepsWrite))
					r.Post("/start", h.startSession)
					r.Post("/stop", h.stopSession)
					r.Post("/steps", h.adjustSession)
					r.Post("/save", h.saveSession)
				})
			})
		})
	})
	return r
}

// WithRequestLogging logs method, path, status and duration for every request.
func WithRequestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
		})
	}
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
