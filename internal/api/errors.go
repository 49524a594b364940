package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/medrevise/revise-api/internal/service/auth"
	"github.com/medrevise/revise-api/internal/service/bulkops"
	"github.com/medrevise/revise-api/internal/service/review"
	"github.com/medrevise/revise-api/internal/service/session"
	"github.com/medrevise/revise-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, review.ErrCardNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, review.ErrWriteConflict),
		errors.Is(err, session.ErrActiveSessionExists),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, review.ErrInvalidGrade),
		errors.Is(err, review.ErrInvalidContentType),
		errors.Is(err, session.ErrInvalidActivityType),
		errors.Is(err, session.ErrItemsRegression),
		errors.Is(err, bulkops.ErrInvalidDistributeDays),
		errors.Is(err, bulkops.ErrNoRescheduleTarget),
		errors.Is(err, bulkops.ErrAmbiguousRescheduleTarget),
		errors.Is(err, bulkops.ErrExamDateInPast),
		errors.Is(err, bulkops.ErrEmptyDeleteSelection),
		errors.Is(err, store.ErrInvalidArgument),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Dependency outages
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	// Not found errors
	case errors.Is(err, review.ErrCardNotFound):
		return "Review card not found"
	case errors.Is(err, session.ErrSessionNotFound):
		return "Study session not found"
	case errors.Is(err, session.ErrNoActiveSession):
		return "No active study session"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	// Conflict errors
	case errors.Is(err, review.ErrWriteConflict):
		return "Card was updated concurrently, please retry"
	case errors.Is(err, session.ErrActiveSessionExists):
		return "An active study session already exists"

	// Bad request errors
	case errors.Is(err, review.ErrInvalidGrade):
		return "Invalid grade"
	case errors.Is(err, review.ErrInvalidContentType):
		return "Invalid content type"
	case errors.Is(err, session.ErrInvalidActivityType):
		return "Invalid activity type"
	case errors.Is(err, session.ErrItemsRegression):
		return "Items completed cannot decrease"
	case errors.Is(err, bulkops.ErrInvalidDistributeDays):
		return "Distribution days must be positive"
	case errors.Is(err, bulkops.ErrNoRescheduleTarget):
		return "A new due date or distribution span is required"
	case errors.Is(err, bulkops.ErrAmbiguousRescheduleTarget):
		return "Provide either a new due date or a distribution span, not both"
	case errors.Is(err, bulkops.ErrExamDateInPast):
		return "Exam date cannot be in the past"
	case errors.Is(err, bulkops.ErrEmptyDeleteSelection):
		return "Card IDs or delete_all is required"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	// Dependency outages
	case errors.Is(err, store.ErrUnavailable):
		return "Service temporarily unavailable, please retry"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Example format: "Key: 'RecordRequest.Grade' Error:Field validation
		// for 'Grade' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too small"
	case "max":
		return "too large"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "invalid identifier"
	default:
		return "validation failed"
	}
}
