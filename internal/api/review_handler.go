package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/api/shared"
	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/platform/logger"
	"github.com/medrevise/revise-api/internal/redact"
	"github.com/medrevise/revise-api/internal/service/review"
)

// ReviewHandler handles review-related HTTP requests.
type ReviewHandler struct {
	reviewService review.Service
	logger        *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviewService review.Service, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewHandler")
	}
	return &ReviewHandler{
		reviewService: reviewService,
		logger:        logger.With(slog.String("component", "review_handler")),
	}
}

// RecordGradeRequest represents the request body for recording a grade.
type RecordGradeRequest struct {
	ContentType  string `json:"content_type"  validate:"required,oneof=flashcard question error_notebook"`
	ContentID    string `json:"content_id"    validate:"required,uuid"`
	Grade        string `json:"grade"         validate:"required,oneof=again hard good easy"`
	ReviewTimeMs int    `json:"review_time_ms" validate:"gte=0"`
}

// RecordGrade handles POST /reviews/record requests.
func (h *ReviewHandler) RecordGrade(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req RecordGradeRequest
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

	contentID, err := uuid.Parse(req.ContentID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid content_id format")
		return
	}

	result, err := h.reviewService.RecordGrade(r.Context(), userID, review.RecordRequest{
		ContentType:  domain.ContentType(req.ContentType),
		ContentID:    contentID,
		Grade:        domain.Grade(req.Grade),
		ReviewTimeMs: req.ReviewTimeMs,
	})
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to record grade"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("grade recorded",
		slog.String("user_id", userID.String()),
		slog.String("card_id", result.Card.ID.String()),
		slog.String("grade", req.Grade))
	shared.RespondWithJSON(w, r, http.StatusOK, RecordGradeResponse{
		Card:    cardToResponse(result.Card, nil),
		Created: result.Created,
	})
}

// Preview handles GET /reviews/preview requests. It shows the schedule each
// grade would produce for a card without persisting anything.
func (h *ReviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	contentType := domain.ContentType(r.URL.Query().Get("content_type"))
	if !contentType.IsValid() {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid content type")
		return
	}
	contentID, err := uuid.Parse(r.URL.Query().Get("content_id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid content_id format")
		return
	}

	preview, err := h.reviewService.Preview(r.Context(), userID, contentType, contentID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to preview grades"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	response := make(map[string]CardResponse, len(preview))
	for grade, card := range preview {
		response[string(grade)] = cardToResponse(card, nil)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// Today handles GET /reviews/today requests.
func (h *ReviewHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.listPool(w, r, h.reviewService.TodayCards)
}

// Due handles GET /reviews/due requests.
func (h *ReviewHandler) Due(w http.ResponseWriter, r *http.Request) {
	h.listPool(w, r, h.reviewService.DueCards)
}

// Future handles GET /reviews/future requests.
func (h *ReviewHandler) Future(w http.ResponseWriter, r *http.Request) {
	h.listPool(w, r, h.reviewService.FutureCards)
}

// Completed handles GET /reviews/completed requests.
func (h *ReviewHandler) Completed(w http.ResponseWriter, r *http.Request) {
	h.listPool(w, r, h.reviewService.CompletedCards)
}

// listPool parses the shared pool listing parameters and delegates to the
// given pool query.
func (h *ReviewHandler) listPool(
	w http.ResponseWriter,
	r *http.Request,
	query func(ctx context.Context, userID uuid.UUID, opts review.ListOptions) (*review.Page, error),
) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	types, ok := queryContentTypes(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid content type")
		return
	}
	startDate, ok := queryTime(r, "start_date")
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid start_date format")
		return
	}
	endDate, ok := queryTime(r, "end_date")
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid end_date format")
		return
	}

	opts := review.ListOptions{
		ContentTypes:    types,
		TZOffsetMinutes: queryInt(r, "tz_offset", 0),
		DueOnly:         queryBool(r, "due_only"),
		StartDate:       startDate,
		EndDate:         endDate,
		LookbackDays:    queryInt(r, "days", 0),
		Cursor:          r.URL.Query().Get("cursor"),
		Limit:           queryInt(r, "limit", 0),
	}

	page, err := query(r.Context(), userID, opts)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to list review cards"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, pageToResponse(page))
}

// Summary handles GET /reviews/summary requests.
func (h *ReviewHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.reviewService.Summary(r.Context(), userID, queryInt(r, "tz_offset", 0))
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to build review summary"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// Overdue handles GET /reviews/overdue requests.
func (h *ReviewHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.reviewService.OverdueStats(r.Context(), userID)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to compute overdue stats"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}
