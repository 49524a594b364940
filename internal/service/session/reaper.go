package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/medrevise/revise-api/internal/store"
)

// Reaper closes study sessions whose clients stopped heartbeating. A reaped
// session is credited up to its last sign of life plus the inactivity
// timeout, not up to when the reaper happened to run.
type Reaper struct {
	sessions  store.StudySessionStore
	timeout   time.Duration
	scheduler *gocron.Scheduler
	logger    *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewReaper creates a reaper that sweeps at the given interval and closes
// sessions idle longer than timeout.
func NewReaper(
	sessions store.StudySessionStore,
	timeout, interval time.Duration,
	log *slog.Logger,
) *Reaper {
	// ALLOW-PANIC: Constructor enforces required dependencies
	if sessions == nil {
		panic("sessions store cannot be nil")
	}
	if timeout <= 0 {
		panic("timeout must be positive")
	}
	if interval <= 0 {
		panic("interval must be positive")
	}
	if log == nil {
		log = slog.Default()
	}

	scheduler := gocron.NewScheduler(time.UTC)
	r := &Reaper{
		sessions:  sessions,
		timeout:   timeout,
		scheduler: scheduler,
		logger:    log.With(slog.String("component", "session_reaper")),
		now:       time.Now,
	}

	// Sweep errors are logged inside Sweep; a failed sweep just waits for
	// the next tick.
	_, _ = scheduler.Every(interval).Do(func() {
		_, _ = r.Sweep(context.Background())
	})
	return r
}

// Start begins sweeping in the background.
func (r *Reaper) Start() {
	r.scheduler.StartAsync()
	r.logger.Info("session reaper started",
		slog.Duration("timeout", r.timeout),
	)
}

// Stop halts sweeping. Any sweep in flight finishes.
func (r *Reaper) Stop() {
	r.scheduler.Stop()
	r.logger.Info("session reaper stopped")
}

// Sweep closes every session idle past the timeout and returns how many it
// closed. Sessions another writer ends mid-sweep are skipped.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	log := r.logger
	now := r.now().UTC()

	stale, err := r.sessions.ListStale(ctx, now.Add(-r.timeout))
	if err != nil {
		log.Error("failed to list stale sessions", slog.String("error", err.Error()))
		return 0, err
	}

	reaped := 0
	for _, sess := range stale {
		endedAt := sess.LastHeartbeatAt.Add(r.timeout)
		ended, err := r.sessions.End(ctx, sess.ID, endedAt, sess.ItemsCompleted)
		if err != nil {
			log.Error("failed to reap session",
				slog.String("error", err.Error()),
				slog.String("session_id", sess.ID.String()))
			continue
		}
		if !ended {
			// The client ended it first; nothing to do.
			continue
		}
		reaped++
		log.Info("reaped inactive session",
			slog.String("session_id", sess.ID.String()),
			slog.String("user_id", sess.UserID.String()),
			slog.Time("last_heartbeat_at", sess.LastHeartbeatAt),
			slog.Time("ended_at", endedAt))
	}

	if len(stale) > 0 {
		log.Debug("sweep finished",
			slog.Int("stale", len(stale)),
			slog.Int("reaped", reaped))
	}
	return reaped, nil
}
