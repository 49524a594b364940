package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/api/shared"
	"github.com/medrevise/revise-api/internal/domain"
)

// requireUserID extracts the authenticated user ID from the request context.
// On failure it writes a 401 response and returns false.
func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// pathUUID parses the named chi URL parameter as a UUID.
// On failure it writes a 400 response and returns false.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing "+name+" in URL path")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter, returning fallback
// when absent or unparseable.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// queryBool parses an optional boolean query parameter. Absent or
// unparseable values read as false.
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// queryTime parses an optional RFC 3339 query parameter. The bool reports
// whether the value was parseable; absent values return (nil, true).
func queryTime(r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	t = t.UTC()
	return &t, true
}

// queryContentTypes parses the optional comma-separated content_types query
// parameter. Unknown values report an error via the bool return.
func queryContentTypes(r *http.Request) ([]domain.ContentType, bool) {
	raw := r.URL.Query().Get("content_types")
	if raw == "" {
		return nil, true
	}

	var types []domain.ContentType
	for _, part := range strings.Split(raw, ",") {
		ct := domain.ContentType(strings.TrimSpace(part))
		if !ct.IsValid() {
			return nil, false
		}
		types = append(types, ct)
	}
	return types, true
}
