// Package content defines the boundary between the review engine and the
// systems that own the studied material. The engine schedules opaque
// (content_type, content_id) pairs; everything needed to render them comes
// through a Provider.
package content

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
)

// ErrContentNotFound is returned when a referenced item no longer exists in
// its owning system. Cards pointing at missing content still schedule
// normally; only display enrichment degrades.
var ErrContentNotFound = errors.New("content not found")

// Display carries the render-ready fields for one studied item. Which fields
// are populated depends on the content type.
type Display struct {
	ContentType domain.ContentType `json:"content_type"`
	ContentID   uuid.UUID          `json:"content_id"`
	Title       string             `json:"title,omitempty"`
	Front       string             `json:"front,omitempty"`
	Back        string             `json:"back,omitempty"`
	Statement   string             `json:"statement,omitempty"`
	Topic       string             `json:"topic,omitempty"`
}

// Ref identifies one studied item for batch lookups.
type Ref struct {
	ContentType domain.ContentType
	ContentID   uuid.UUID
}

// Provider resolves display data for studied items. Implementations live
// outside this module (question bank, flashcard deck, error notebook) and are
// injected at wiring time.
type Provider interface {
	// BatchDisplay resolves display data for the given refs. Missing items
	// are simply absent from the result; the caller treats that as a card
	// with no renderable content, not an error.
	BatchDisplay(ctx context.Context, userID uuid.UUID, refs []Ref) (map[Ref]*Display, error)
}

// NopProvider resolves nothing. Useful in tests and in deployments where the
// caller enriches cards itself.
type NopProvider struct{}

var _ Provider = (*NopProvider)(nil)

// BatchDisplay implements Provider.
func (NopProvider) BatchDisplay(_ context.Context, _ uuid.UUID, _ []Ref) (map[Ref]*Display, error) {
	return map[Ref]*Display{}, nil
}
