// Package scheduler runs the periodic maintenance jobs of the resolution
// service.
package scheduler

import (
	"github.com/robfig/cron/v3"

	"entity-graph/backend/internal/logger"
	"entity-graph/backend/internal/suggest"
)

// DefaultSweepSpec sweeps expired suggestion cache entries once a minute.
const DefaultSweepSpec = "@every 1m"

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	cron  *cron.Cron
	cache *suggest.Cache
}

// New creates a scheduler for the given suggestion cache.
func New(cache *suggest.Cache) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		cache: cache,
	}
}

// Start registers the maintenance jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(DefaultSweepSpec, func() {
		if dropped := s.cache.Sweep(); dropped > 0 {
			logger.Debug().Int("dropped", dropped).Msg("swept expired suggestion cache entries")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info().Str("sweep_spec", DefaultSweepSpec).Msg("scheduler started")
	return nil
}

// Stop stops the cron runner. Running jobs finish; no new ones start.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	logger.Info().Msg("scheduler stopped")
}

// Jobs returns the registered cron entries.
func (s *Scheduler) Jobs() []cron.Entry {
	return s.cron.Entries()
}
