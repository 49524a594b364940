package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/store"
)

// LogStore is an in-memory store.ReviewLogStore.
type LogStore struct {
	mu   sync.Mutex
	logs []*domain.ReviewLog
}

var _ store.ReviewLogStore = (*LogStore)(nil)

// NewLogStore creates an empty in-memory review log store.
func NewLogStore() *LogStore {
	return &LogStore{}
}

// All returns a copy of every stored log entry, in insertion order.
func (s *LogStore) All() []*domain.ReviewLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ReviewLog, 0, len(s.logs))
	for _, l := range s.logs {
		cp := *l
		out = append(out, &cp)
	}
	return out
}

// WithTx implements store.ReviewLogStore.WithTx.
func (s *LogStore) WithTx(_ store.DBTX) store.ReviewLogStore { return s }

// Create implements store.ReviewLogStore.Create.
func (s *LogStore) Create(_ context.Context, log *domain.ReviewLog) error {
	if err := log.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *log
	s.logs = append(s.logs, &cp)
	return nil
}

// ListByCard implements store.ReviewLogStore.ListByCard.
func (s *LogStore) ListByCard(_ context.Context, userID, cardID uuid.UUID, limit int) ([]*domain.ReviewLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*domain.ReviewLog
	for _, l := range s.logs {
		if l.UserID == userID && l.CardID == cardID {
			cp := *l
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ReviewedAt.After(matched[j].ReviewedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// CountSince implements store.ReviewLogStore.CountSince.
func (s *LogStore) CountSince(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, l := range s.logs {
		if l.UserID == userID && !l.ReviewedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
