package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/store/storetest"
)

type fixture struct {
	svc      *serviceImpl
	sessions *storetest.SessionStore
	now      time.Time
	userID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sessions := storetest.NewSessionStore()
	svc := NewService(sessions, nil).(*serviceImpl)

	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &fixture{svc: svc, sessions: sessions, now: now, userID: uuid.New()}
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
	now := f.now
	f.svc.now = func() time.Time { return now }
}

func TestStart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	res, err := f.svc.Start(context.Background(), f.userID, domain.ActivityTypeFlashcards)
	require.NoError(t, err)

	assert.False(t, res.Resumed)
	assert.Equal(t, f.userID, res.Session.UserID)
	assert.Equal(t, domain.ActivityTypeFlashcards, res.Session.ActivityType)
	assert.Equal(t, f.now, res.Session.StartedAt)
	assert.True(t, res.Session.IsActive())
}

func TestStart_InvalidActivity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.Start(context.Background(), f.userID, domain.ActivityType("gaming"))
	assert.ErrorIs(t, err, ErrInvalidActivityType)
}

func TestStart_ResumesSameActivity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeQuestions)
	require.NoError(t, err)
	startedAt := f.now

	f.advance(5 * time.Minute)

	second, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeQuestions)
	require.NoError(t, err)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.Session.ID, second.Session.ID)

	// The resume hands the session back as-is; only real heartbeats
	// refresh it.
	assert.Equal(t, startedAt, second.Session.LastHeartbeatAt)
	stored := f.sessions.Snapshot(first.Session.ID)
	assert.Equal(t, startedAt, stored.LastHeartbeatAt)
}

func TestStart_ConflictingActivity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeQuestions)
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, f.userID, domain.ActivityTypeReading)
	assert.ErrorIs(t, err, ErrActiveSessionExists)
}

func TestHeartbeat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeReview)
	require.NoError(t, err)

	f.advance(2 * time.Minute)

	sess, err := f.svc.Heartbeat(ctx, f.userID, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, f.now, sess.LastHeartbeatAt)
	assert.True(t, sess.IsActive())
}

func TestHeartbeat_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.Heartbeat(context.Background(), f.userID, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestHeartbeat_OnEndedSessionReturnsFinalState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeReview)
	require.NoError(t, err)

	f.advance(10 * time.Minute)
	ended, err := f.svc.End(ctx, f.userID, res.Session.ID, 12)
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)

	f.advance(time.Minute)
	sess, err := f.svc.Heartbeat(ctx, f.userID, res.Session.ID)
	require.NoError(t, err)

	// The late heartbeat is a no-op; the ended state stands.
	assert.False(t, sess.IsActive())
	assert.True(t, sess.EndedAt.Equal(*ended.EndedAt))
	assert.Equal(t, 12, sess.ItemsCompleted)
}

func TestEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeSimulatedExam)
	require.NoError(t, err)

	f.advance(45 * time.Minute)

	sess, err := f.svc.End(ctx, f.userID, res.Session.ID, 30)
	require.NoError(t, err)

	require.NotNil(t, sess.EndedAt)
	assert.True(t, sess.EndedAt.Equal(f.now))
	assert.Equal(t, 30, sess.ItemsCompleted)
	assert.Equal(t, 45*time.Minute, sess.Duration(f.now))

	// Ending frees the exclusivity slot.
	_, err = f.svc.Start(ctx, f.userID, domain.ActivityTypeReading)
	require.NoError(t, err)
}

func TestEnd_ItemsRegression(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeQuestions)
	require.NoError(t, err)

	sess := f.sessions.Snapshot(res.Session.ID)
	sess.ItemsCompleted = 10
	f.sessions.Seed(sess)

	_, err = f.svc.End(ctx, f.userID, res.Session.ID, 5)
	assert.ErrorIs(t, err, ErrItemsRegression)

	_, err = f.svc.End(ctx, f.userID, res.Session.ID, -1)
	assert.ErrorIs(t, err, ErrItemsRegression)
}

func TestEnd_AlreadyEndedKeepsFirstWriter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeReview)
	require.NoError(t, err)

	f.advance(20 * time.Minute)
	first, err := f.svc.End(ctx, f.userID, res.Session.ID, 8)
	require.NoError(t, err)

	f.advance(time.Hour)
	second, err := f.svc.End(ctx, f.userID, res.Session.ID, 8)
	require.NoError(t, err)

	assert.True(t, second.EndedAt.Equal(*first.EndedAt))
	assert.Equal(t, 8, second.ItemsCompleted)
}

func TestActive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Active(ctx, f.userID)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	res, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeFlashcards)
	require.NoError(t, err)

	active, err := f.svc.Active(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, active.ID)
}

func TestTotalStudyTime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	total, err := f.svc.TotalStudyTime(ctx, f.userID)
	require.NoError(t, err)
	assert.Zero(t, total)

	res, err := f.svc.Start(ctx, f.userID, domain.ActivityTypeReview)
	require.NoError(t, err)
	f.advance(30 * time.Minute)
	_, err = f.svc.End(ctx, f.userID, res.Session.ID, 10)
	require.NoError(t, err)

	res, err = f.svc.Start(ctx, f.userID, domain.ActivityTypeReading)
	require.NoError(t, err)
	f.advance(15 * time.Minute)
	_, err = f.svc.End(ctx, f.userID, res.Session.ID, 3)
	require.NoError(t, err)

	// Only ended sessions count.
	_, err = f.svc.Start(ctx, f.userID, domain.ActivityTypeReview)
	require.NoError(t, err)

	total, err = f.svc.TotalStudyTime(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, total)
}
