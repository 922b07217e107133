// Package sweeper runs the periodic stale-lease reclamation task, wrapping
// robfig/cron/v3 the way the domain stack calls for, and exposes an explicit
// Force method for the /work/reset-timeout endpoint (spec.md §4.2).
package sweeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/vaultcrack/recoverd/internal/logging"
)

const staleAgeSeconds = 3600

// Reclaimer is the subset of *store.Store the sweeper depends on.
type Reclaimer interface {
	ReclaimStale(ctx context.Context, ageSeconds int64) (int64, error)
}

// Sweeper owns the cron schedule driving periodic reclamation.
type Sweeper struct {
	cron      *cron.Cron
	reclaimer Reclaimer
	logger    *logging.Logger
}

// New builds a Sweeper that reclaims stale CHECKING rows every
// intervalMinutes, defaulting to spec.md §4.2's 60-minute cadence.
func New(reclaimer Reclaimer, intervalMinutes int, logger *logging.Logger) (*Sweeper, error) {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	s := &Sweeper{
		cron:      cron.New(),
		reclaimer: reclaimer,
		logger:    logger,
	}
	spec := fmt.Sprintf("@every %dm", intervalMinutes)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("schedule sweeper at %s: %w", spec, err)
	}
	return s, nil
}

// Start begins the cron schedule. Non-blocking.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the cron schedule, waiting for any in-flight tick to finish.
func (s *Sweeper) Stop() { <-s.cron.Stop().Done() }

func (s *Sweeper) tick() {
	n, err := s.reclaimer.ReclaimStale(context.Background(), staleAgeSeconds)
	if err != nil {
		// Per spec.md §7, sweeper failures are logged and swallowed; the
		// next tick retries.
		s.logger.WithError(err).Warn("sweeper tick failed")
		return
	}
	if n > 0 {
		s.logger.WithFields(map[string]interface{}{"reclaimed": n}).Info("sweeper reclaimed stale leases")
	}
}

// Force runs ReclaimStale immediately, outside the cron schedule, for the
// /work/reset-timeout endpoint.
func (s *Sweeper) Force(ctx context.Context) (int64, error) {
	return s.reclaimer.ReclaimStale(ctx, staleAgeSeconds)
}
