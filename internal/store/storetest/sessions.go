package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/store"
)

// SessionStore is an in-memory store.StudySessionStore.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.StudySession
}

var _ store.StudySessionStore = (*SessionStore)(nil)

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]*domain.StudySession)}
}

// Seed inserts sessions directly, bypassing the one-active constraint.
func (s *SessionStore) Seed(sessions ...*domain.StudySession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range sessions {
		cp := *sess
		s.sessions[sess.ID] = &cp
	}
}

// Snapshot returns a copy of the stored session, or nil.
func (s *SessionStore) Snapshot(id uuid.UUID) *domain.StudySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	cp := *sess
	return &cp
}

// WithTx implements store.StudySessionStore.WithTx.
func (s *SessionStore) WithTx(_ *sql.Tx) store.StudySessionStore { return s }

// Create implements store.StudySessionStore.Create.
func (s *SessionStore) Create(_ context.Context, session *domain.StudySession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == session.UserID && sess.EndedAt == nil {
			return store.ErrActiveSessionExists
		}
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

// GetByID implements store.StudySessionStore.GetByID.
func (s *SessionStore) GetByID(_ context.Context, userID, sessionID uuid.UUID) (*domain.StudySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return nil, store.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// GetActive implements store.StudySessionStore.GetActive.
func (s *SessionStore) GetActive(_ context.Context, userID uuid.UUID) (*domain.StudySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.EndedAt == nil {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, store.ErrSessionNotFound
}

// Heartbeat implements store.StudySessionStore.Heartbeat.
func (s *SessionStore) Heartbeat(_ context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.EndedAt != nil {
		return false, nil
	}
	sess.LastHeartbeatAt = at
	sess.UpdatedAt = at
	return true, nil
}

// End implements store.StudySessionStore.End.
func (s *SessionStore) End(_ context.Context, sessionID uuid.UUID, endedAt time.Time, itemsCompleted int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.EndedAt != nil {
		return false, nil
	}
	at := endedAt
	sess.EndedAt = &at
	sess.ItemsCompleted = itemsCompleted
	sess.UpdatedAt = endedAt
	return true, nil
}

// ListStale implements store.StudySessionStore.ListStale.
func (s *SessionStore) ListStale(_ context.Context, cutoff time.Time) ([]*domain.StudySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []*domain.StudySession
	for _, sess := range s.sessions {
		if sess.EndedAt == nil && sess.LastHeartbeatAt.Before(cutoff) {
			cp := *sess
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

// TotalStudyTime implements store.StudySessionStore.TotalStudyTime.
func (s *SessionStore) TotalStudyTime(_ context.Context, userID uuid.UUID) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.EndedAt != nil {
			total += sess.EndedAt.Sub(sess.StartedAt)
		}
	}
	return total, nil
}
