package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"MarginEngine/internal/observability"
)

// SnapshotScheduler checkpoints the engine on a fixed interval. It is the
// only writer of the snapshot row and coordinates with the engine loop
// solely through the capture callback's read access. A failed save is
// logged and retried on the next tick; it never stops the scheduler and
// never touches the engine loop.
type SnapshotScheduler struct {
	store    *SnapshotStore
	capture  func() *SnapshotData
	interval time.Duration
	log      zerolog.Logger
	metrics  *observability.Metrics
}

func NewSnapshotScheduler(
	store *SnapshotStore,
	capture func() *SnapshotData,
	interval time.Duration,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *SnapshotScheduler {
	return &SnapshotScheduler{
		store:    store,
		capture:  capture,
		interval: interval,
		log:      log,
		metrics:  metrics,
	}
}

// Run checkpoints until ctx is cancelled. The ticker stops before return,
// so shutdown never writes a snapshot from a partially torn-down process;
// no final synchronous flush is needed; restart recovers from the last
// periodic checkpoint plus log replay.
func (s *SnapshotScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("snapshot scheduler stopped")
			return
		case <-ticker.C:
			s.save(ctx)
		}
	}
}

func (s *SnapshotScheduler) save(ctx context.Context) {
	start := time.Now()
	snap := s.capture()

	saveCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	if err := s.store.Save(saveCtx, snap); err != nil {
		s.log.Error().Err(err).Uint64("offset", snap.LastOffset).Msg("snapshot save failed, retrying next interval")
		if s.metrics != nil {
			s.metrics.SnapshotErrors.Inc()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.SnapshotSaved.Inc()
		s.metrics.SnapshotOffset.Set(float64(snap.LastOffset))
		s.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	}

	s.log.Debug().
		Uint64("offset", snap.LastOffset).
		Int("positions", len(snap.OpenPositions)).
		Msg("snapshot saved")
}
