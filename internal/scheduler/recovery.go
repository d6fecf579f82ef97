package scheduler

import (
	"context"
	"errors"

	obsmetrics "github.com/smallbiznis/parkway/internal/observability/metrics"
	"go.uber.org/zap"
)

// OrphanSweepJob frees slots that have been occupied past the threshold
// with no active reservation, no open vehicle log and no pending
// reconciliation. These appear when a process dies between committing an
// occupancy and recording its owner.
func (s *Scheduler) OrphanSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "orphan_sweep", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.OrphanThreshold)
	var jobErr error
	schedMetrics := obsmetrics.Scheduler()

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		slots, err := s.fetchOrphanSlots(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.orphan.fetch.failed", "orphan_sweep", err)
			return jobErr
		}
		if len(slots) == 0 {
			break
		}

		released := 0
		for _, slot := range slots {
			s.logger(ctx).Warn("scheduler.orphan.detected",
				zap.String("slot_id", idString(slot.ID)),
				zap.Time("occupied_since", slot.UpdatedAt),
			)
			if err := s.coordinator.Release(ctx, s.db, slot.ID); err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.orphan.release.failed", "orphan_sweep", err,
					zap.String("slot_id", idString(slot.ID)),
				)
				continue
			}
			released++
			if s.metrics != nil {
				s.metrics.RecordOccupancyConflict(ctx, "orphan_released")
			}
		}

		run.AddProcessed(released)
		if released > 0 {
			schedMetrics.AddBatchProcessed("orphan_sweep", "slots", released)
		}
		// Nothing released means every orphan in this pass failed; bail so
		// the next tick retries instead of spinning.
		if released == 0 {
			break
		}
	}

	return jobErr
}
