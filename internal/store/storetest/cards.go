// Package storetest provides in-memory store implementations for service
// tests. They honor the same contracts as the PostgreSQL stores: optimistic
// concurrency, keyset pagination, and first-writer-wins session ends.
package storetest

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/store"
)

const defaultPageSize = 50

// CardStore is an in-memory store.ReviewCardStore.
type CardStore struct {
	mu    sync.Mutex
	cards map[uuid.UUID]*domain.ReviewCard

	// UpsertHook, when set, runs before every Upsert and can inject
	// failures (e.g. to exercise conflict retries).
	UpsertHook func(card *domain.ReviewCard) error
}

var _ store.ReviewCardStore = (*CardStore)(nil)

// NewCardStore creates an empty in-memory card store.
func NewCardStore() *CardStore {
	return &CardStore{cards: make(map[uuid.UUID]*domain.ReviewCard)}
}

// Seed inserts cards directly, bypassing validation. Test setup only.
func (s *CardStore) Seed(cards ...*domain.ReviewCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cards {
		cp := *c
		s.cards[c.ID] = &cp
	}
}

// Snapshot returns a copy of the stored card, or nil.
func (s *CardStore) Snapshot(id uuid.UUID) *domain.ReviewCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// Len reports how many cards are stored.
func (s *CardStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cards)
}

// WithTx implements store.ReviewCardStore.WithTx.
func (s *CardStore) WithTx(_ *sql.Tx) store.ReviewCardStore { return s }

// Get implements store.ReviewCardStore.Get.
func (s *CardStore) Get(
	_ context.Context,
	userID uuid.UUID,
	contentType domain.ContentType,
	contentID uuid.UUID,
) (*domain.ReviewCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.UserID == userID && c.ContentType == contentType && c.ContentID == contentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrCardNotFound
}

// GetByID implements store.ReviewCardStore.GetByID.
func (s *CardStore) GetByID(_ context.Context, userID, cardID uuid.UUID) (*domain.ReviewCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[cardID]
	if !ok || c.UserID != userID {
		return nil, store.ErrCardNotFound
	}
	cp := *c
	return &cp, nil
}

// Create implements store.ReviewCardStore.Create.
func (s *CardStore) Create(_ context.Context, card *domain.ReviewCard) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.UserID == card.UserID && c.ContentType == card.ContentType && c.ContentID == card.ContentID {
			return fmt.Errorf("%w: duplicate card", store.ErrConflict)
		}
	}
	cp := *card
	s.cards[card.ID] = &cp
	return nil
}

// Upsert implements store.ReviewCardStore.Upsert.
func (s *CardStore) Upsert(_ context.Context, card *domain.ReviewCard, expectedUpdatedAt time.Time) error {
	if s.UpsertHook != nil {
		if err := s.UpsertHook(card); err != nil {
			return err
		}
	}
	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cards[card.ID]
	if !ok || cur.UserID != card.UserID {
		return store.ErrCardNotFound
	}
	if !cur.UpdatedAt.Equal(expectedUpdatedAt) {
		return store.ErrStaleCard
	}
	cp := *card
	s.cards[card.ID] = &cp
	return nil
}

// ListByFilter implements store.ReviewCardStore.ListByFilter.
func (s *CardStore) ListByFilter(
	_ context.Context,
	filter store.CardFilter,
	sortKey store.CardSort,
	cursor string,
	limit int,
) (*store.CardPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	s.mu.Lock()
	var matched []*domain.ReviewCard
	for _, c := range s.cards {
		if matchesFilter(c, filter) {
			cp := *c
			matched = append(matched, &cp)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return cardLess(matched[i], matched[j], sortKey)
	})

	if cursor != "" {
		after, afterID, err := decodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: bad cursor", store.ErrInvalidArgument)
		}
		var remaining []*domain.ReviewCard
		for _, c := range matched {
			if afterCursor(c, after, afterID, sortKey) {
				remaining = append(remaining, c)
			}
		}
		matched = remaining
	}

	page := &store.CardPage{}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	page.Cards = matched
	if len(matched) == limit {
		last := matched[len(matched)-1]
		key := last.Due
		if sortKey == store.SortByLastReviewDesc && last.LastReview != nil {
			key = *last.LastReview
		}
		page.NextCursor = encodeCursor(key, last.ID)
	}
	return page, nil
}

// CountByFilter implements store.ReviewCardStore.CountByFilter.
func (s *CardStore) CountByFilter(
	_ context.Context,
	filter store.CardFilter,
) (map[domain.ContentType]map[domain.CardState]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.ContentType]map[domain.CardState]int)
	for _, c := range s.cards {
		if !matchesFilter(c, filter) {
			continue
		}
		if counts[c.ContentType] == nil {
			counts[c.ContentType] = make(map[domain.CardState]int)
		}
		counts[c.ContentType][c.State]++
	}
	return counts, nil
}

// BulkWrite implements store.ReviewCardStore.BulkWrite with the same paged,
// idempotency-dependent contract as the SQL store.
func (s *CardStore) BulkWrite(
	ctx context.Context,
	filter store.CardFilter,
	transform store.CardTransform,
) (*store.BulkWriteResult, error) {
	result := &store.BulkWriteResult{}
	seen := make(map[uuid.UUID]struct{})
	cursor := ""

	for {
		page, err := s.ListByFilter(ctx, filter, store.SortByDueAsc, cursor, defaultPageSize)
		if err != nil {
			return result, err
		}
		if len(page.Cards) == 0 {
			return result, nil
		}

		for _, card := range page.Cards {
			// A moved card can reappear in a later page; count it once.
			if _, ok := seen[card.ID]; ok {
				continue
			}
			seen[card.ID] = struct{}{}
			result.Matched++

			expected := card.UpdatedAt
			if !transform(card) {
				continue
			}
			card.UpdatedAt = time.Now().UTC()
			if err := s.Upsert(ctx, card, expected); err != nil {
				if store.IsConflictError(err) || store.IsNotFoundError(err) {
					result.Failed++
					continue
				}
				return result, err
			}
			result.Updated++
		}

		if page.NextCursor == "" {
			return result, nil
		}
		cursor = page.NextCursor
	}
}

// Delete implements store.ReviewCardStore.Delete.
func (s *CardStore) Delete(_ context.Context, userID uuid.UUID, ids []uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if c, ok := s.cards[id]; ok && c.UserID == userID {
			delete(s.cards, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteByFilter implements store.ReviewCardStore.DeleteByFilter.
func (s *CardStore) DeleteByFilter(_ context.Context, filter store.CardFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, c := range s.cards {
		if matchesFilter(c, filter) {
			delete(s.cards, id)
			deleted++
		}
	}
	return deleted, nil
}

func matchesFilter(c *domain.ReviewCard, f store.CardFilter) bool {
	if c.UserID != f.UserID {
		return false
	}
	if len(f.ContentTypes) > 0 && !containsContentType(f.ContentTypes, c.ContentType) {
		return false
	}
	if len(f.States) > 0 && !containsState(f.States, c.State) {
		return false
	}
	if len(f.IDs) > 0 && !containsID(f.IDs, c.ID) {
		return false
	}
	if f.DueBefore != nil && c.Due.After(*f.DueBefore) {
		return false
	}
	if f.DueAfter != nil && !c.Due.After(*f.DueAfter) {
		return false
	}
	if f.ReviewedSince != nil && (c.LastReview == nil || c.LastReview.Before(*f.ReviewedSince)) {
		return false
	}
	if f.NotReviewedSince != nil && c.LastReview != nil && !c.LastReview.Before(*f.NotReviewedSince) {
		return false
	}
	if !f.IncludeSuspended && c.Suspended {
		return false
	}
	return true
}

func cardLess(a, b *domain.ReviewCard, sortKey store.CardSort) bool {
	if sortKey == store.SortByLastReviewDesc {
		at, bt := reviewKey(a), reviewKey(b)
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.ID.String() < b.ID.String()
	}
	if !a.Due.Equal(b.Due) {
		return a.Due.Before(b.Due)
	}
	return a.ID.String() < b.ID.String()
}

func reviewKey(c *domain.ReviewCard) time.Time {
	if c.LastReview == nil {
		return time.Time{}
	}
	return *c.LastReview
}

// afterCursor reports whether c sorts strictly after the cursor position.
func afterCursor(c *domain.ReviewCard, after time.Time, afterID uuid.UUID, sortKey store.CardSort) bool {
	if sortKey == store.SortByLastReviewDesc {
		key := reviewKey(c)
		if !key.Equal(after) {
			return key.Before(after)
		}
		return c.ID.String() > afterID.String()
	}
	if !c.Due.Equal(after) {
		return c.Due.After(after)
	}
	return c.ID.String() > afterID.String()
}

func encodeCursor(t time.Time, id uuid.UUID) string {
	raw := t.UTC().Format(time.RFC3339Nano) + "|" + id.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	return t, id, nil
}

func containsContentType(list []domain.ContentType, v domain.ContentType) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsState(list []domain.CardState, v domain.CardState) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsID(list []uuid.UUID, v uuid.UUID) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
