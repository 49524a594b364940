package review

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCaps_Effective(t *testing.T) {
	t.Parallel()

	caps := NewCaps(50, 200)
	userID := uuid.New()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	// No window: the normal cap applies.
	assert.Equal(t, 50, caps.Effective(userID, now))

	// Active window: the cramming cap applies, up to and including the
	// expiry instant.
	until := now.Add(48 * time.Hour)
	caps.ActivateCramming(userID, until)
	assert.Equal(t, 200, caps.Effective(userID, now))
	assert.Equal(t, 200, caps.Effective(userID, until))

	// Expired window falls back to normal and stays there.
	assert.Equal(t, 50, caps.Effective(userID, until.Add(time.Second)))
	assert.Equal(t, 50, caps.Effective(userID, now))

	// Windows are per user.
	caps.ActivateCramming(userID, until)
	assert.Equal(t, 50, caps.Effective(uuid.New(), now))
}

func TestCaps_Deactivate(t *testing.T) {
	t.Parallel()

	caps := NewCaps(50, 200)
	userID := uuid.New()
	now := time.Now().UTC()

	caps.ActivateCramming(userID, now.Add(time.Hour))
	assert.Equal(t, 200, caps.Effective(userID, now))

	caps.DeactivateCramming(userID)
	assert.Equal(t, 50, caps.Effective(userID, now))
}

func TestNewCaps_PanicsOnBadLimits(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewCaps(0, 100) })
	assert.Panics(t, func() { NewCaps(100, 50) })
}
