package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medrevise/revise-api/internal/api"
	apiMiddleware "github.com/medrevise/revise-api/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.tokenVerifier)

	reviewHandler := api.NewReviewHandler(app.reviewService, app.logger)
	bulkHandler := api.NewBulkOpsHandler(app.bulkEngine, app.logger)
	sessionHandler := api.NewSessionHandler(app.sessionService, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Unified review surface
			r.Get("/reviews/today", reviewHandler.Today)
			r.Get("/reviews/due", reviewHandler.Due)
			r.Get("/reviews/future", reviewHandler.Future)
			r.Get("/reviews/completed", reviewHandler.Completed)
			r.Get("/reviews/summary", reviewHandler.Summary)
			r.Get("/reviews/overdue", reviewHandler.Overdue)
			r.Get("/reviews/preview", reviewHandler.Preview)
			r.Post("/reviews/record", reviewHandler.RecordGrade)

			// Bulk card operations
			r.Post("/reviews/bulk/reschedule", bulkHandler.Reschedule)
			r.Post("/reviews/bulk/reset", bulkHandler.ResetProgress)
			r.Post("/reviews/bulk/suspend", bulkHandler.SetSuspended)
			r.Post("/reviews/bulk/delete", bulkHandler.Delete)
			r.Post("/reviews/cramming", bulkHandler.ActivateCramming)
			r.Delete("/reviews/cramming", bulkHandler.DeactivateCramming)

			// Study sessions
			r.Post("/sessions", sessionHandler.Start)
			r.Get("/sessions/active", sessionHandler.Active)
			r.Get("/sessions/total-time", sessionHandler.TotalTime)
			r.Post("/sessions/{id}/heartbeat", sessionHandler.Heartbeat)
			r.Post("/sessions/{id}/end", sessionHandler.End)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
