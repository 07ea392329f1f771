package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtrack/backend/internal/features"
	"github.com/mtrack/backend/internal/models"
	"github.com/mtrack/backend/internal/predictor"
)

// fakeStore is an in-memory Store honoring the same atomicity contract as
// the real repository: finalize succeeds only while the session is active,
// and at most one active session exists per user.
type fakeStore struct {
	sessions map[uuid.UUID]*models.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[uuid.UUID]*models.Session)}
}

func (f *fakeStore) CreateActive(_ context.Context, userID uuid.UUID, songID *uuid.UUID, now time.Time) (*models.Session, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsActive {
			return nil, ErrActiveExists
		}
	}
	s := &models.Session{
		ID:          uuid.New(),
		UserID:      userID,
		SongID:      songID,
		StartedAt:   now,
		LastEventAt: now,
		IsActive:    true,
		Events:      []models.SessionEvent{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.sessions[s.ID] = s
	return cloneSession(s), nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	if s, ok := f.sessions[id]; ok {
		return cloneSession(s), nil
	}
	return nil, nil
}

func (f *fakeStore) GetActiveByUser(_ context.Context, userID uuid.UUID) (*models.Session, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsActive {
			return cloneSession(s), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Heartbeat(_ context.Context, sessionID, userID uuid.UUID, now time.Time) error {
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID || !s.IsActive {
		return ErrNotFound
	}
	if now.After(s.LastEventAt) {
		s.LastEventAt = now
	}
	return nil
}

func (f *fakeStore) Finalize(_ context.Context, p FinalizeParams) (*models.Session, error) {
	s, ok := f.sessions[p.SessionID]
	if !ok || !s.IsActive {
		return nil, ErrSessionEnded
	}
	endedAt := p.EndedAt
	s.IsActive = false
	s.EndedAt = &endedAt
	s.AutoEnded = p.AutoEnded
	s.Events = p.Events
	data := p.AggregatedData
	s.AggregatedData = &data
	s.Prediction = p.Prediction
	if endedAt.After(s.LastEventAt) {
		s.LastEventAt = endedAt
	}
	return cloneSession(s), nil
}

func (f *fakeStore) ListStaleActive(_ context.Context, cutoff time.Time) ([]*models.Session, error) {
	var out []*models.Session
	for _, s := range f.sessions {
		if s.IsActive && s.LastEventAt.Before(cutoff) {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func (f *fakeStore) GetLatestEnded(_ context.Context, userID uuid.UUID) (*models.Session, error) {
	var latest *models.Session
	for _, s := range f.sessions {
		if s.UserID != userID || s.IsActive || s.Prediction == nil {
			continue
		}
		if latest == nil || s.EndedAt.After(*latest.EndedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneSession(latest), nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Session, error) {
	var out []*models.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	return &c
}

type fakeSongs struct{ exists bool }

func (f *fakeSongs) Exists(context.Context, uuid.UUID) (bool, error) { return f.exists, nil }

type fakeGateway struct {
	result *models.Prediction
	err    error
	calls  int
}

func (f *fakeGateway) Predict(_ context.Context, _ features.Vector) (*models.Prediction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &models.Prediction{
		StressLevel:     models.LevelLow,
		StressProbs:     map[string]float64{models.LevelLow: 0.7},
		DepressionLevel: models.LevelLow,
		DepressionProbs: map[string]float64{models.LevelLow: 0.7},
		Explanations:    []string{"ok"},
		Source:          models.SourceFallback,
	}, nil
}

type fakeNotifier struct {
	dispatched []*models.Prediction
}

func (f *fakeNotifier) Dispatch(_ context.Context, _, _ uuid.UUID, p *models.Prediction) {
	f.dispatched = append(f.dispatched, p)
}

type fixture struct {
	store    *fakeStore
	songs    *fakeSongs
	gateway  *fakeGateway
	notifier *fakeNotifier
	svc      *Service
	clock    *time.Time
}

func newFixture() *fixture {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fx := &fixture{
		store:    newFakeStore(),
		songs:    &fakeSongs{exists: true},
		gateway:  &fakeGateway{},
		notifier: &fakeNotifier{},
		clock:    &now,
	}
	fx.svc = NewService(fx.store, fx.songs, fx.gateway, fx.notifier, nil).
		WithClock(func() time.Time { return *fx.clock })
	return fx
}

func (fx *fixture) advance(d time.Duration) {
	*fx.clock = fx.clock.Add(d)
}

func TestStartCreatesSession(t *testing.T) {
	fx := newFixture()
	userID := uuid.New()

	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)
	assert.True(t, sess.IsActive)
	assert.Equal(t, userID, sess.UserID)
	assert.Equal(t, sess.StartedAt, sess.LastEventAt)
}

func TestStartIsIdempotentWithinWindow(t *testing.T) {
	fx := newFixture()
	userID := uuid.New()

	first, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	fx.advance(9 * time.Minute)
	second, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.StartedAt, second.StartedAt)
}

func TestStartForceEndsStaleSession(t *testing.T) {
	fx := newFixture()
	userID := uuid.New()

	stale, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	fx.advance(11 * time.Minute)
	fresh, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	assert.NotEqual(t, stale.ID, fresh.ID)

	old, _ := fx.store.GetByID(context.Background(), stale.ID)
	assert.False(t, old.IsActive)
	assert.True(t, old.AutoEnded)
	assert.NotNil(t, old.Prediction)
	assert.NotNil(t, old.AggregatedData)
}

func TestStartUnknownSong(t *testing.T) {
	fx := newFixture()
	fx.songs.exists = false
	songID := uuid.New()

	_, err := fx.svc.Start(context.Background(), uuid.New(), &songID)
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestHeartbeatMonotonic(t *testing.T) {
	fx := newFixture()
	userID := uuid.New()
	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	fx.advance(time.Minute)
	require.NoError(t, fx.svc.Heartbeat(context.Background(), sess.ID, userID))
	after, _ := fx.store.GetByID(context.Background(), sess.ID)
	first := after.LastEventAt
	assert.True(t, first.After(sess.LastEventAt))

	// A heartbeat that does not advance the clock must not move the
	// timestamp backward or forward.
	require.NoError(t, fx.svc.Heartbeat(context.Background(), sess.ID, userID))
	again, _ := fx.store.GetByID(context.Background(), sess.ID)
	assert.Equal(t, first, again.LastEventAt)
}

func TestHeartbeatUnknownSession(t *testing.T) {
	fx := newFixture()
	err := fx.svc.Heartbeat(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHeartbeatForeignSession(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Start(context.Background(), uuid.New(), nil)
	require.NoError(t, err)

	err = fx.svc.Heartbeat(context.Background(), sess.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEndFinalizesOnce(t *testing.T) {
	fx := newFixture()
	userID := uuid.New()
	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	data := models.AggregatedData{SkipRateBucket: "Never"}
	ended, err := fx.svc.End(context.Background(), sess.ID, userID, nil, data)
	require.NoError(t, err)
	assert.False(t, ended.IsActive)
	assert.False(t, ended.AutoEnded)
	assert.NotNil(t, ended.Prediction)
	assert.Len(t, fx.notifier.dispatched, 1)

	// Second end must not recompute or overwrite the prediction.
	_, err = fx.svc.End(context.Background(), sess.ID, userID, nil, data)
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.Equal(t, 1, fx.gateway.calls)
}

func TestEndForeignSession(t *testing.T) {
	fx := newFixture()
	sess, err := fx.svc.Start(context.Background(), uuid.New(), nil)
	require.NoError(t, err)

	_, err = fx.svc.End(context.Background(), sess.ID, uuid.New(), nil, models.AggregatedData{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEndUnknownSession(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.End(context.Background(), uuid.New(), uuid.New(), nil, models.AggregatedData{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEndPredictionFailureLeavesSessionActive(t *testing.T) {
	fx := newFixture()
	fx.gateway.err = errors.New("classifier down")
	userID := uuid.New()
	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	_, err = fx.svc.End(context.Background(), sess.ID, userID, nil, models.AggregatedData{})
	assert.ErrorIs(t, err, ErrPredictionUnavailable)

	still, _ := fx.store.GetByID(context.Background(), sess.ID)
	assert.True(t, still.IsActive)
	assert.Nil(t, still.Prediction)
	assert.Empty(t, fx.notifier.dispatched)

	// Retry succeeds once the classifier recovers.
	fx.gateway.err = nil
	ended, err := fx.svc.End(context.Background(), sess.ID, userID, nil, models.AggregatedData{})
	require.NoError(t, err)
	assert.False(t, ended.IsActive)
}

func TestEndDispatchesHighAlerts(t *testing.T) {
	fx := newFixture()
	fx.gateway.result = &models.Prediction{
		StressLevel:     models.LevelHigh,
		DepressionLevel: models.LevelLow,
		Source:          models.SourceClassifier,
	}
	userID := uuid.New()
	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	_, err = fx.svc.End(context.Background(), sess.ID, userID, nil, models.AggregatedData{})
	require.NoError(t, err)
	require.Len(t, fx.notifier.dispatched, 1)
	assert.Equal(t, models.LevelHigh, fx.notifier.dispatched[0].StressLevel)
}

func TestSingleActiveSessionPerUser(t *testing.T) {
	fx := newFixture()
	userID := uuid.New()

	_, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)
	_, err = fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	var active int
	for _, s := range fx.store.sessions {
		if s.UserID == userID && s.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestAutoEndAbsorbsPredictorFailure(t *testing.T) {
	fx := newFixture()
	userID := uuid.New()
	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	fx.gateway.err = errors.New("timeout")
	require.NoError(t, fx.svc.AutoEnd(context.Background(), sess, fx.clock.Add(20*time.Minute)))

	ended, _ := fx.store.GetByID(context.Background(), sess.ID)
	assert.False(t, ended.IsActive)
	assert.True(t, ended.AutoEnded)
	assert.Equal(t, models.LevelUnknown, ended.Prediction.StressLevel)
	assert.Equal(t, models.SourceUnavailable, ended.Prediction.Source)
	assert.Len(t, fx.notifier.dispatched, 1)
}

func TestAutoEndSynthesizesAggregatedData(t *testing.T) {
	fx := newFixture()
	userID := uuid.New()
	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	endAt := sess.StartedAt.Add(45 * time.Minute)
	require.NoError(t, fx.svc.AutoEnd(context.Background(), sess, endAt))

	ended, _ := fx.store.GetByID(context.Background(), sess.ID)
	require.NotNil(t, ended.AggregatedData)
	assert.Equal(t, features.BucketLength30to60, ended.AggregatedData.SessionLengthBucket)
	assert.Equal(t, features.TimeOfDayBucket(endAt), ended.AggregatedData.ListeningTimeOfDay)
}

func TestLatestReturnsEndedWithPrediction(t *testing.T) {
	fx := newFixture()
	userID := uuid.New()
	sess, err := fx.svc.Start(context.Background(), userID, nil)
	require.NoError(t, err)

	latest, err := fx.svc.Latest(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = fx.svc.End(context.Background(), sess.ID, userID, nil, models.AggregatedData{})
	require.NoError(t, err)

	latest, err = fx.svc.Latest(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, sess.ID, latest.ID)
}

func TestGetOwnershipChecked(t *testing.T) {
	fx := newFixture()
	owner := uuid.New()
	sess, err := fx.svc.Start(context.Background(), owner, nil)
	require.NoError(t, err)

	_, err = fx.svc.Get(context.Background(), sess.ID, uuid.New())
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := fx.svc.Get(context.Background(), sess.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

var _ predictor.Gateway = (*fakeGateway)(nil)
