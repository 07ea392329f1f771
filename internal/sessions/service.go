// Package sessions implements the listening-session lifecycle: start,
// heartbeat, explicit end, and the background inactivity sweep. A session
// moves Active -> Ended exactly once; the end-transition computes the
// feature snapshot, obtains a prediction and hands it to the alert
// dispatcher.
package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtrack/backend/internal/features"
	"github.com/mtrack/backend/internal/models"
	"github.com/mtrack/backend/internal/predictor"
)

// HeartbeatWindow is how long an active session survives without client
// events before start() reclaims it and the sweeper force-ends it.
const HeartbeatWindow = 10 * time.Minute

// Store is the session persistence contract. Every state transition the
// service performs goes through an atomic conditional update in the store;
// the service never caches session state across calls.
type Store interface {
	CreateActive(ctx context.Context, userID uuid.UUID, songID *uuid.UUID, now time.Time) (*models.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	Heartbeat(ctx context.Context, sessionID, userID uuid.UUID, now time.Time) error
	Finalize(ctx context.Context, p FinalizeParams) (*models.Session, error)
	ListStaleActive(ctx context.Context, cutoff time.Time) ([]*models.Session, error)
	GetLatestEnded(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
}

// SongChecker reports whether a song id resolves.
type SongChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Notifier receives the prediction of every ended session. Implementations
// must be fire-and-forget: they never fail the end-transition.
type Notifier interface {
	Dispatch(ctx context.Context, userID, sessionID uuid.UUID, p *models.Prediction)
}

// Service is the session lifecycle manager.
type Service struct {
	store    Store
	songs    SongChecker
	gateway  predictor.Gateway
	notifier Notifier
	window   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a lifecycle manager. The clock is injectable for tests;
// nil means time.Now.
func NewService(store Store, songs SongChecker, gateway predictor.Gateway, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		songs:    songs,
		gateway:  gateway,
		notifier: notifier,
		window:   HeartbeatWindow,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the service clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Start begins a session for the user. Re-entry within the heartbeat window
// returns the existing active session unchanged. A stale active session
// (gap > window) is force-ended through the same path the sweeper uses
// before the new session is created.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, songID *uuid.UUID) (*models.Session, error) {
	now := s.now()

	active, err := s.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	if active != nil {
		if now.Sub(active.LastEventAt) <= s.window {
			return active, nil
		}
		if err := s.AutoEnd(ctx, active, now); err != nil {
			// The client may have ended it in parallel; either way it is no
			// longer active, so creation can proceed.
			s.logger.Warn("force-end of stale session failed",
				zap.String("session_id", active.ID.String()), zap.Error(err))
		}
	}

	if songID != nil {
		ok, err := s.songs.Exists(ctx, *songID)
		if err != nil {
			return nil, fmt.Errorf("check song: %w", err)
		}
		if !ok {
			return nil, ErrSongNotFound
		}
	}

	sess, err := s.store.CreateActive(ctx, userID, songID, now)
	if err == ErrActiveExists {
		// Lost a creation race; the winner's session is the user's session.
		if winner, rerr := s.store.GetActiveByUser(ctx, userID); rerr == nil && winner != nil {
			return winner, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("session started",
		zap.String("session_id", sess.ID.String()),
		zap.String("user_id", userID.String()))
	return sess, nil
}

// Heartbeat advances last_event_at for the caller's active session.
func (s *Service) Heartbeat(ctx context.Context, sessionID, userID uuid.UUID) error {
	return s.store.Heartbeat(ctx, sessionID, userID, s.now())
}

// End finalizes a session with client-supplied events and aggregated data.
// Predictor failures propagate and leave the session active for retry; this
// intentionally differs from the sweep path, which always terminates.
func (s *Service) End(ctx context.Context, sessionID, userID uuid.UUID, events []models.SessionEvent, data models.AggregatedData) (*models.Session, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.UserID != userID {
		return nil, ErrForbidden
	}
	if !sess.IsActive {
		return nil, ErrSessionEnded
	}

	pred, err := s.gateway.Predict(ctx, features.Aggregate(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredictionUnavailable, err)
	}

	ended, err := s.store.Finalize(ctx, FinalizeParams{
		SessionID:      sessionID,
		EndedAt:        s.now(),
		AutoEnded:      false,
		Events:         events,
		AggregatedData: data,
		Prediction:     pred,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(ctx, userID, sessionID, pred)
	s.logger.Info("session ended",
		zap.String("session_id", sessionID.String()),
		zap.String("stress_level", pred.StressLevel),
		zap.String("depression_level", pred.DepressionLevel))
	return ended, nil
}

// AutoEnd force-ends a session with synthesized aggregated data. Used by the
// sweeper and by Start when it finds a stale active session. Predictor
// failures are absorbed into an Unknown result: an auto-end must always
// terminate the session.
func (s *Service) AutoEnd(ctx context.Context, sess *models.Session, now time.Time) error {
	data := features.Synthesize(sess.StartedAt, now)

	pred, err := s.gateway.Predict(ctx, features.Aggregate(data))
	if err != nil {
		s.logger.Warn("prediction failed during auto-end, substituting unknown",
			zap.String("session_id", sess.ID.String()), zap.Error(err))
		pred = predictor.Unknown("Prediction was unavailable when this session was auto-ended after inactivity.")
	}

	_, err = s.store.Finalize(ctx, FinalizeParams{
		SessionID:      sess.ID,
		EndedAt:        now,
		AutoEnded:      true,
		Events:         sess.Events,
		AggregatedData: data,
		Prediction:     pred,
	})
	if err != nil {
		return err
	}

	s.notifier.Dispatch(ctx, sess.UserID, sess.ID, pred)
	s.logger.Info("session auto-ended",
		zap.String("session_id", sess.ID.String()),
		zap.String("user_id", sess.UserID.String()))
	return nil
}

// Active returns the user's active session, or nil.
func (s *Service) Active(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	return s.store.GetActiveByUser(ctx, userID)
}

// Latest returns the user's most recent ended session with a prediction, or nil.
func (s *Service) Latest(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	return s.store.GetLatestEnded(ctx, userID)
}

// List returns the user's sessions, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	return s.store.ListByUser(ctx, userID)
}

// Get returns one session, ownership-checked.
func (s *Service) Get(ctx context.Context, sessionID, userID uuid.UUID) (*models.Session, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.UserID != userID {
		return nil, ErrForbidden
	}
	return sess, nil
}
