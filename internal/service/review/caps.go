package review

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Caps resolves the effective daily review limit per user. The normal cap
// applies unless the user has an active cramming window, during which the
// raised cramming cap applies. Windows live in memory only; they expire on
// their own and a restart simply falls back to the normal cap.
type Caps struct {
	mu       sync.RWMutex
	normal   int
	cramming int
	windows  map[uuid.UUID]time.Time
}

// NewCaps creates a Caps resolver with the given normal and cramming limits.
func NewCaps(normal, cramming int) *Caps {
	// ALLOW-PANIC: Constructor enforces required dependencies
	if normal <= 0 {
		panic("normal cap must be positive")
	}
	if cramming < normal {
		panic("cramming cap cannot be below the normal cap")
	}
	return &Caps{
		normal:   normal,
		cramming: cramming,
		windows:  make(map[uuid.UUID]time.Time),
	}
}

// ActivateCramming raises the user's cap until the given instant.
func (c *Caps) ActivateCramming(userID uuid.UUID, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows[userID] = until
}

// DeactivateCramming restores the user's normal cap immediately.
func (c *Caps) DeactivateCramming(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.windows, userID)
}

// Effective returns the cap in force for the user at the given instant,
// discarding any expired window along the way.
func (c *Caps) Effective(userID uuid.UUID, now time.Time) int {
	c.mu.RLock()
	until, ok := c.windows[userID]
	c.mu.RUnlock()

	if !ok {
		return c.normal
	}
	if now.After(until) {
		c.mu.Lock()
		// Re-check under the write lock; a newer window may have landed.
		if cur, still := c.windows[userID]; still && now.After(cur) {
			delete(c.windows, userID)
		}
		c.mu.Unlock()
		return c.normal
	}
	return c.cramming
}
