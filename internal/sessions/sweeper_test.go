package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtrack/backend/internal/models"
)

func newSweeperFixture() (*fixture, *Sweeper) {
	fx := newFixture()
	sw := NewSweeper(fx.svc, fx.store, time.Minute, nil).
		WithClock(func() time.Time { return *fx.clock })
	return fx, sw
}

func TestSweepEndsStaleSessions(t *testing.T) {
	fx, sw := newSweeperFixture()
	userA, userB := uuid.New(), uuid.New()

	stale, err := fx.svc.Start(context.Background(), userA, nil)
	require.NoError(t, err)

	fx.advance(8 * time.Minute)
	fresh, err := fx.svc.Start(context.Background(), userB, nil)
	require.NoError(t, err)

	fx.advance(3 * time.Minute) // stale is now 11m idle, fresh 3m
	sw.Sweep(context.Background())

	ended, _ := fx.store.GetByID(context.Background(), stale.ID)
	assert.False(t, ended.IsActive)
	assert.True(t, ended.AutoEnded)
	assert.NotNil(t, ended.Prediction)
	assert.NotNil(t, ended.AggregatedData)

	alive, _ := fx.store.GetByID(context.Background(), fresh.ID)
	assert.True(t, alive.IsActive)
}

func TestSweepNoopWhenNothingStale(t *testing.T) {
	fx, sw := newSweeperFixture()

	sess, err := fx.svc.Start(context.Background(), uuid.New(), nil)
	require.NoError(t, err)

	fx.advance(5 * time.Minute)
	sw.Sweep(context.Background())

	still, _ := fx.store.GetByID(context.Background(), sess.ID)
	assert.True(t, still.IsActive)
	assert.Empty(t, fx.notifier.dispatched)
}

func TestSweepHeartbeatKeepsSessionAlive(t *testing.T) {
	fx, sw := newSweeperFixture()
	userID := uuid.New()

	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	fx.advance(9 * time.Minute)
	require.NoError(t, fx.svc.Heartbeat(context.Background(), sess.ID, userID))

	fx.advance(9 * time.Minute) // 18m since start but only 9m since heartbeat
	sw.Sweep(context.Background())

	still, _ := fx.store.GetByID(context.Background(), sess.ID)
	assert.True(t, still.IsActive)
}

func TestSweepLosesRaceToExplicitEnd(t *testing.T) {
	fx, _ := newSweeperFixture()
	userID := uuid.New()

	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)
	fx.advance(11 * time.Minute)

	// The sweeper has listed the session as stale, but the client's end
	// lands first. The sweep's conditional update must lose cleanly.
	stale, err := fx.store.ListStaleActive(context.Background(), fx.clock.Add(-HeartbeatWindow))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	ended, err := fx.svc.End(context.Background(), sess.ID, userID, nil, models.AggregatedData{SkipRateBucket: "Never"})
	require.NoError(t, err)
	assert.False(t, ended.AutoEnded)

	err = fx.svc.AutoEnd(context.Background(), stale[0], *fx.clock)
	assert.ErrorIs(t, err, ErrSessionEnded)

	// The explicit end's prediction survives untouched.
	final, _ := fx.store.GetByID(context.Background(), sess.ID)
	assert.False(t, final.AutoEnded)
	assert.NotNil(t, final.AggregatedData)
	assert.Equal(t, "Never", final.AggregatedData.SkipRateBucket)
	assert.Len(t, fx.notifier.dispatched, 1)
}

func TestSweepFailureIsolation(t *testing.T) {
	fx, sw := newSweeperFixture()
	userA, userB := uuid.New(), uuid.New()

	a, err := fx.svc.Start(context.Background(), userA, nil)
	require.NoError(t, err)
	b, err := fx.svc.Start(context.Background(), userB, nil)
	require.NoError(t, err)

	fx.advance(11 * time.Minute)

	// Ending one session out from under the sweep simulates a per-session
	// failure; the other stale session must still be processed.
	_, err = fx.svc.End(context.Background(), a.ID, userA, nil, models.AggregatedData{})
	require.NoError(t, err)

	sw.Sweep(context.Background())

	endedB, _ := fx.store.GetByID(context.Background(), b.ID)
	assert.False(t, endedB.IsActive)
	assert.True(t, endedB.AutoEnded)
}

func TestSweepRunStopsOnCancel(t *testing.T) {
	_, sw := newSweeperFixture()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
