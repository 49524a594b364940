package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/medrevise/revise-api/internal/api/shared"
	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/platform/logger"
	"github.com/medrevise/revise-api/internal/redact"
	"github.com/medrevise/revise-api/internal/service/session"
)

// SessionHandler handles study session HTTP requests.
type SessionHandler struct {
	sessionService session.Service
	logger         *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService session.Service, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SessionHandler")
	}
	return &SessionHandler{
		sessionService: sessionService,
		logger:         logger.With(slog.String("component", "session_handler")),
	}
}

// StartSessionRequest represents the request body for starting a session.
type StartSessionRequest struct {
	ActivityType string `json:"activity_type" validate:"required,oneof=review questions flashcards simulated_exam reading"`
}

// StartSessionResponse represents the response for a started session.
type StartSessionResponse struct {
	Session SessionResponse `json:"session"`
	Resumed bool            `json:"resumed"`
}

// Start handles POST /sessions requests.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req StartSessionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	result, err := h.sessionService.Start(r.Context(), userID, domain.ActivityType(req.ActivityType))
	if err != nil {
		h.respondError(w, r, err, "Failed to start session")
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, StartSessionResponse{
		Session: sessionToResponse(result.Session, time.Now().UTC()),
		Resumed: result.Resumed,
	})
}

// Heartbeat handles POST /sessions/{id}/heartbeat requests.
func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	sess, err := h.sessionService.Heartbeat(r.Context(), userID, sessionID)
	if err != nil {
		h.respondError(w, r, err, "Failed to record heartbeat")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(sess, time.Now().UTC()))
}

// EndSessionRequest represents the request body for ending a session.
type EndSessionRequest struct {
	ItemsCompleted int `json:"items_completed" validate:"gte=0"`
}

// End handles POST /sessions/{id}/end requests.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req EndSessionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	sess, err := h.sessionService.End(r.Context(), userID, sessionID, req.ItemsCompleted)
	if err != nil {
		h.respondError(w, r, err, "Failed to end session")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(sess, time.Now().UTC()))
}

// Active handles GET /sessions/active requests.
func (h *SessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sess, err := h.sessionService.Active(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err, "Failed to load active session")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(sess, time.Now().UTC()))
}

// TotalTimeResponse reports a user's accumulated study time.
type TotalTimeResponse struct {
	TotalSeconds int64 `json:"total_seconds"`
}

// TotalTime handles GET /sessions/total-time requests.
func (h *SessionHandler) TotalTime(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	total, err := h.sessionService.TotalStudyTime(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err, "Failed to compute total study time")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TotalTimeResponse{
		TotalSeconds: int64(total.Seconds()),
	})
}

// respondError maps a session service error onto a sanitized HTTP response.
func (h *SessionHandler) respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	statusCode := MapErrorToStatusCode(err)
	safeMessage := GetSafeErrorMessage(err)
	if statusCode == http.StatusInternalServerError {
		safeMessage = fallback
	}
	shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
}
