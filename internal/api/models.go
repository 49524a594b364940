package api

import (
	"time"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/service/content"
	"github.com/medrevise/revise-api/internal/service/review"
)

// CardResponse represents the response data for a review card.
type CardResponse struct {
	ID            string           `json:"id"`
	ContentType   string           `json:"content_type"`
	ContentID     string           `json:"content_id"`
	State         string           `json:"state"`
	Due           time.Time        `json:"due"`
	Stability     float64          `json:"stability"`
	Difficulty    float64          `json:"difficulty"`
	ScheduledDays int              `json:"scheduled_days"`
	Reps          int              `json:"reps"`
	Lapses        int              `json:"lapses"`
	LastReview    *time.Time       `json:"last_review,omitempty"`
	Suspended     bool             `json:"suspended,omitempty"`
	Display       *content.Display `json:"display,omitempty"`
}

// CardPageResponse represents one page of a pool listing.
type CardPageResponse struct {
	Cards      []CardResponse `json:"cards"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// RecordGradeResponse represents the outcome of recording a grade.
type RecordGradeResponse struct {
	Card    CardResponse `json:"card"`
	Created bool         `json:"created"`
}

// SessionResponse represents the response data for a study session.
type SessionResponse struct {
	ID              string     `json:"id"`
	ActivityType    string     `json:"activity_type"`
	StartedAt       time.Time  `json:"started_at"`
	LastHeartbeatAt time.Time  `json:"last_heartbeat_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	ItemsCompleted  int        `json:"items_completed"`
	DurationSeconds int64      `json:"duration_seconds"`
}

// cardToResponse converts a domain.ReviewCard to a CardResponse.
func cardToResponse(card *domain.ReviewCard, display *content.Display) CardResponse {
	return CardResponse{
		ID:            card.ID.String(),
		ContentType:   string(card.ContentType),
		ContentID:     card.ContentID.String(),
		State:         string(card.State),
		Due:           card.Due,
		Stability:     card.Stability,
		Difficulty:    card.Difficulty,
		ScheduledDays: card.ScheduledDays,
		Reps:          card.Reps,
		Lapses:        card.Lapses,
		LastReview:    card.LastReview,
		Suspended:     card.Suspended,
		Display:       display,
	}
}

// pageToResponse converts a review.Page to a CardPageResponse.
func pageToResponse(page *review.Page) CardPageResponse {
	cards := make([]CardResponse, 0, len(page.Cards))
	for _, c := range page.Cards {
		cards = append(cards, cardToResponse(c.ReviewCard, c.Display))
	}
	return CardPageResponse{Cards: cards, NextCursor: page.NextCursor}
}

// sessionToResponse converts a domain.StudySession to a SessionResponse.
func sessionToResponse(sess *domain.StudySession, now time.Time) SessionResponse {
	return SessionResponse{
		ID:              sess.ID.String(),
		ActivityType:    string(sess.ActivityType),
		StartedAt:       sess.StartedAt,
		LastHeartbeatAt: sess.LastHeartbeatAt,
		EndedAt:         sess.EndedAt,
		ItemsCompleted:  sess.ItemsCompleted,
		DurationSeconds: int64(sess.Duration(now).Seconds()),
	}
}
