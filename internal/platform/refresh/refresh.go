// Package refresh periodically drops the upstream snapshot, refetches it and
// tells connected consoles to reload.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/console/internal/domain/patient"
	"github.com/ehr/console/internal/platform/websocket"
)

// Events broadcast after a successful refresh.
const (
	EventAssignmentsRefreshed = "assignments.refreshed"
	EventRequestsRefreshed    = "requests.refreshed"
)

// Invalidator drops cached upstream responses.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Warmer refetches the upstream records and summarizes them.
type Warmer interface {
	Overview(ctx context.Context) (*patient.Overview, error)
}

// Refresher runs the refresh cycle on a fixed interval.
type Refresher struct {
	cache     Invalidator
	warmer    Warmer
	publisher websocket.Publisher
	interval  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger

	mu      sync.RWMutex
	lastRun time.Time
	lastErr error
}

func New(cache Invalidator, warmer Warmer, publisher websocket.Publisher, interval time.Duration, logger zerolog.Logger) *Refresher {
	timeout := interval
	if timeout <= 0 || timeout > time.Minute {
		timeout = time.Minute
	}
	return &Refresher{
		cache:     cache,
		warmer:    warmer,
		publisher: publisher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger.With().Str("component", "refresh").Logger(),
	}
}

// Run refreshes once immediately and then every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.logger.Info().Dur("interval", r.interval).Msg("refresh loop started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("refresh loop stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	err := r.RefreshOnce(runCtx)
	if err != nil && ctx.Err() == nil {
		r.logger.Error().Err(err).Msg("refresh failed")
	} else if err == nil {
		r.logger.Debug().Dur("took", time.Since(start)).Msg("refresh complete")
	}
}

// RefreshOnce invalidates the snapshot, warms it again and broadcasts the
// result. Nothing is broadcast when the refetch fails.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	err := r.refresh(ctx)
	r.mu.Lock()
	r.lastRun, r.lastErr = time.Now().UTC(), err
	r.mu.Unlock()
	return err
}

func (r *Refresher) refresh(ctx context.Context) error {
	if err := r.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	ov, err := r.warmer.Overview(ctx)
	if err != nil {
		return fmt.Errorf("warm snapshot: %w", err)
	}
	if r.publisher == nil {
		return nil
	}
	if err := r.publisher.Publish(ctx, websocket.NewEvent(websocket.TopicAssignments, EventAssignmentsRefreshed, ov)); err != nil {
		return fmt.Errorf("publish %s: %w", EventAssignmentsRefreshed, err)
	}
	pending := map[string]int{"pending": ov.PendingRequests}
	if err := r.publisher.Publish(ctx, websocket.NewEvent(websocket.TopicReassignmentRequests, EventRequestsRefreshed, pending)); err != nil {
		return fmt.Errorf("publish %s: %w", EventRequestsRefreshed, err)
	}
	return nil
}

// Last reports when the most recent refresh finished and how.
func (r *Refresher) Last() (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRun, r.lastErr
}
