package server

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"promptkit/pkg/logger"
)

// startPruner schedules journal retention. It does nothing without a
// journal or with a non-positive retention.
func (s *Server) startPruner() error {
	if !s.journalEnabled() || s.cfg.Storage.Retention <= 0 {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Storage.PruneSchedule, func() { s.prune(time.Now()) }); err != nil {
		return fmt.Errorf("prune schedule %q: %w", s.cfg.Storage.PruneSchedule, err)
	}
	c.Start()
	s.pruner = c

	logger.Debug().
		Str("schedule", s.cfg.Storage.PruneSchedule).
		Dur("retention", s.cfg.Storage.Retention).
		Msg("journal pruning scheduled")
	return nil
}

// prune removes journal entries older than the retention and expired
// key/value entries such as persisted suffixes.
func (s *Server) prune(now time.Time) {
	renders, err := s.db.PruneRenders(now.Add(-s.cfg.Storage.Retention))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to prune render journal")
		return
	}
	kv, err := s.db.KVCleanExpired()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to clean expired keys")
		return
	}
	logger.Info().Int64("renders", renders).Int64("keys", kv).Msg("journal pruned")
}
