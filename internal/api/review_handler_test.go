package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrevise/revise-api/internal/api"
	"github.com/medrevise/revise-api/internal/api/middleware"
	"github.com/medrevise/revise-api/internal/domain/srs"
	"github.com/medrevise/revise-api/internal/service/auth"
	"github.com/medrevise/revise-api/internal/service/review"
	"github.com/medrevise/revise-api/internal/store/storetest"
)

const testJWTSecret = "test-signing-secret-with-enough-length"

// newTestServer wires a review handler behind the auth middleware the way the
// router does, backed by in-memory stores.
func newTestServer(t *testing.T) (*httptest.Server, *storetest.CardStore) {
	t.Helper()

	cards := storetest.NewCardStore()
	logs := storetest.NewLogStore()
	caps := review.NewCaps(50, 200)
	svc := review.NewService(nil, cards, logs, srs.NewDefaultScheduler(), nil, caps, review.Config{}, nil)

	verifier, err := auth.NewHMACVerifier(testJWTSecret)
	require.NoError(t, err)

	handler := api.NewReviewHandler(svc, slog.Default())
	authMw := middleware.NewAuthMiddleware(verifier)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(authMw.Authenticate)
		r.Post("/api/reviews/record", handler.RecordGrade)
		r.Get("/api/reviews/due", handler.Due)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, cards
}

func bearerToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRecordGradeEndpoint(t *testing.T) {
	t.Parallel()

	srv, cards := newTestServer(t)
	userID := uuid.New()
	token := bearerToken(t, userID)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reviews/record", token, map[string]any{
		"content_type":   "flashcard",
		"content_id":     uuid.New().String(),
		"grade":          "good",
		"review_time_ms": 2500,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.RecordGradeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Created)
	assert.Equal(t, "review", body.Card.State)
	assert.Equal(t, 1, body.Card.Reps)
	assert.Equal(t, 1, cards.Len())
}

func TestRecordGradeEndpoint_Validation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	token := bearerToken(t, uuid.New())

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reviews/record", token, map[string]any{
		"content_type": "flashcard",
		"content_id":   uuid.New().String(),
		"grade":        "brilliant",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReviewEndpoints_RequireAuth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/reviews/due", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/reviews/due", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDueEndpoint_DueOnlyFilter(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	userID := uuid.New()
	token := bearerToken(t, userID)

	// An "again" grade schedules the card a few minutes out: due later
	// today, but not yet due.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reviews/record", token, map[string]any{
		"content_type": "flashcard",
		"content_id":   uuid.New().String(),
		"grade":        "again",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Anchor the caller's local day at noon so the end of day stays hours
	// away regardless of when the test runs.
	now := time.Now().UTC()
	tzOffset := 12*60 - (now.Hour()*60 + now.Minute())
	url := fmt.Sprintf("%s/api/reviews/due?tz_offset=%d", srv.URL, tzOffset)

	resp = doJSON(t, http.MethodGet, url, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page api.CardPageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Len(t, page.Cards, 1)

	resp = doJSON(t, http.MethodGet, url+"&due_only=true", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page = api.CardPageResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Empty(t, page.Cards)
}

func TestDueEndpoint_ScopedToCaller(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	alice := uuid.New()
	bob := uuid.New()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reviews/record", bearerToken(t, alice), map[string]any{
		"content_type": "question",
		"content_id":   uuid.New().String(),
		"grade":        "again",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Bob never sees Alice's cards.
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/reviews/due", srv.URL), bearerToken(t, bob), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page api.CardPageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Empty(t, page.Cards)
}
