package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/api/shared"
	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/platform/logger"
	"github.com/medrevise/revise-api/internal/redact"
	"github.com/medrevise/revise-api/internal/service/bulkops"
)

// BulkOpsHandler handles bulk card operation HTTP requests.
type BulkOpsHandler struct {
	engine bulkops.Engine
	logger *slog.Logger
}

// NewBulkOpsHandler creates a new BulkOpsHandler.
func NewBulkOpsHandler(engine bulkops.Engine, logger *slog.Logger) *BulkOpsHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for BulkOpsHandler")
	}
	return &BulkOpsHandler{
		engine: engine,
		logger: logger.With(slog.String("component", "bulkops_handler")),
	}
}

// SelectionRequest is the wire shape of a bulk card selection.
type SelectionRequest struct {
	IDs              []string `json:"ids,omitempty"               validate:"dive,uuid"`
	ContentTypes     []string `json:"content_types,omitempty"     validate:"dive,oneof=flashcard question error_notebook"`
	States           []string `json:"states,omitempty"            validate:"dive,oneof=new learning review relearning"`
	IncludeSuspended bool     `json:"include_suspended,omitempty"`
}

// toSelection converts the request selection into the engine's type.
func (s SelectionRequest) toSelection() (bulkops.Selection, error) {
	sel := bulkops.Selection{IncludeSuspended: s.IncludeSuspended}
	for _, raw := range s.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return bulkops.Selection{}, err
		}
		sel.IDs = append(sel.IDs, id)
	}
	for _, ct := range s.ContentTypes {
		sel.ContentTypes = append(sel.ContentTypes, domain.ContentType(ct))
	}
	for _, st := range s.States {
		sel.States = append(sel.States, domain.CardState(st))
	}
	return sel, nil
}

// RescheduleRequest represents the request body for a bulk reschedule.
type RescheduleRequest struct {
	SelectionRequest
	NewDue         *time.Time `json:"new_due,omitempty"`
	DistributeDays int        `json:"distribute_days,omitempty"`
}

// Reschedule handles POST /reviews/bulk/reschedule requests.
func (h *BulkOpsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req RescheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	sel, err := req.toSelection()
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid card ID format")
		return
	}

	result, err := h.engine.Reschedule(r.Context(), userID, bulkops.RescheduleRequest{
		Selection:      sel,
		NewDue:         req.NewDue,
		DistributeDays: req.DistributeDays,
	})
	if err != nil {
		h.respondError(w, r, err, "Failed to reschedule cards")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// ResetProgress handles POST /reviews/bulk/reset requests.
func (h *BulkOpsHandler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req SelectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	sel, err := req.toSelection()
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid card ID format")
		return
	}

	result, err := h.engine.ResetProgress(r.Context(), userID, sel)
	if err != nil {
		h.respondError(w, r, err, "Failed to reset card progress")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// SuspendRequest represents the request body for bulk suspension changes.
type SuspendRequest struct {
	SelectionRequest
	Suspended bool `json:"suspended"`
}

// SetSuspended handles POST /reviews/bulk/suspend requests.
func (h *BulkOpsHandler) SetSuspended(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req SuspendRequest
	if !h.decode(w, r, &req) {
		return
	}

	sel, err := req.toSelection()
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid card ID format")
		return
	}

	result, err := h.engine.SetSuspended(r.Context(), userID, sel, req.Suspended)
	if err != nil {
		h.respondError(w, r, err, "Failed to update card suspension")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// DeleteRequest represents the request body for a bulk delete. Without
// delete_all an explicit id list is required; with it the field filters
// pick the cards and ids are ignored.
type DeleteRequest struct {
	SelectionRequest
	DeleteAll bool `json:"delete_all,omitempty"`
}

// DeleteResponse reports how many cards a delete removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// Delete handles POST /reviews/bulk/delete requests.
func (h *BulkOpsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req DeleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	sel, err := req.toSelection()
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid card ID format")
		return
	}

	deleted, err := h.engine.Delete(r.Context(), userID, bulkops.DeleteRequest{
		Selection: sel,
		DeleteAll: req.DeleteAll,
	})
	if err != nil {
		h.respondError(w, r, err, "Failed to delete cards")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// CrammingRequest represents the request body for activating cramming.
type CrammingRequest struct {
	ExamDate time.Time `json:"exam_date" validate:"required"`
}

// ActivateCramming handles POST /reviews/cramming requests.
func (h *BulkOpsHandler) ActivateCramming(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CrammingRequest
	if !h.decode(w, r, &req) {
		return
	}

	plan, err := h.engine.ActivateCramming(r.Context(), userID, req.ExamDate)
	if err != nil {
		h.respondError(w, r, err, "Failed to activate cramming")
		return
	}

	log.Info("cramming activated",
		slog.String("user_id", userID.String()),
		slog.Int("days", plan.Days))
	shared.RespondWithJSON(w, r, http.StatusOK, plan)
}

// DeactivateCramming handles DELETE /reviews/cramming requests.
func (h *BulkOpsHandler) DeactivateCramming(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.engine.DeactivateCramming(r.Context(), userID); err != nil {
		h.respondError(w, r, err, "Failed to deactivate cramming")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode parses and validates a JSON request body, responding on failure.
func (h *BulkOpsHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if err := shared.DecodeJSON(r, v); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

// respondError maps an engine error onto a sanitized HTTP response.
func (h *BulkOpsHandler) respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	statusCode := MapErrorToStatusCode(err)
	safeMessage := GetSafeErrorMessage(err)
	if statusCode == http.StatusInternalServerError {
		safeMessage = fallback
	}
	shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
}
