package sessions

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often the sweeper scans for stale sessions.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically force-ends active sessions whose last event is older
// than the heartbeat window. It shares the end-transition with the lifecycle
// service, so a sweep and a concurrent explicit end race on the store's
// conditional update and exactly one wins.
type Sweeper struct {
	svc      *Service
	store    Store
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSweeper creates an inactivity sweeper.
func NewSweeper(svc *Service, store Store, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		svc:      svc,
		store:    store,
		interval: interval,
		window:   HeartbeatWindow,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the sweeper clock (tests).
func (w *Sweeper) WithClock(now func() time.Time) *Sweeper {
	w.now = now
	return w
}

// Run executes a sweep every interval until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("inactivity sweeper started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inactivity sweeper stopping")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Sessions are processed independently: a failure on
// one is logged and does not abort the rest.
func (w *Sweeper) Sweep(ctx context.Context) {
	now := w.now()
	stale, err := w.store.ListStaleActive(ctx, now.Add(-w.window))
	if err != nil {
		w.logger.Error("sweep: list stale sessions", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	var failures int
	for _, sess := range stale {
		if err := w.svc.AutoEnd(ctx, sess, now); err != nil {
			failures++
			w.logger.Warn("sweep: auto-end failed",
				zap.String("session_id", sess.ID.String()), zap.Error(err))
		}
	}

	w.logger.Info("sweep completed",
		zap.Time("started_at", now),
		zap.Int("processed", len(stale)),
		zap.Int("failures", failures))
}
