package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/clock"
	"github.com/smallbiznis/parkway/internal/occupancy"
	obsmetrics "github.com/smallbiznis/parkway/internal/observability/metrics"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	"github.com/smallbiznis/parkway/internal/scheduler/guard"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	ReservationRepo reservationdomain.Repository
	Coordinator     occupancy.Coordinator
	ReconRepo       occupancy.ReconciliationRepository
	Metrics         *obsmetrics.Metrics `optional:"true"`
	Lease           *SweepLease         `optional:"true"`
	Config          Config              `optional:"true"`
}

// Scheduler drives the background sweeps: completing reservations whose
// end time has passed, draining the release reconciliation queue and
// repairing slots stuck occupied with no owner.
type Scheduler struct {
	db              *gorm.DB
	log             *zap.Logger
	cfg             Config
	genID           *snowflake.Node
	clock           clock.Clock
	reservationRepo reservationdomain.Repository
	coordinator     occupancy.Coordinator
	reconRepo       occupancy.ReconciliationRepository
	metrics         *obsmetrics.Metrics
	lease           *SweepLease

	sweeping atomic.Bool
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.ReservationRepo == nil || p.Coordinator == nil || p.ReconRepo == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		db:              p.DB,
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             cfg,
		genID:           p.GenID,
		clock:           p.Clock,
		reservationRepo: p.ReservationRepo,
		coordinator:     p.Coordinator,
		reconRepo:       p.ReconRepo,
		metrics:         p.Metrics,
		lease:           p.Lease,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout: the remaining backlog is picked up by
	// the next sweep tick.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Timeout time.Duration
		Run     func(context.Context) error
	}{
		{"expire_reservations", s.cfg.JobTimeout, s.ExpireReservationsJob},
		{"reconcile_releases", s.cfg.JobTimeout, s.ReconcileReleasesJob},
		{"orphan_sweep", s.cfg.JobTimeout, s.OrphanSweepJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, job.Timeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		s.sweep(ctx)
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweep runs one tick, skipping when the previous tick is still in flight
// or another instance holds the lease.
func (s *Scheduler) sweep(ctx context.Context) {
	schedMetrics := obsmetrics.Scheduler()
	if !s.sweeping.CompareAndSwap(false, true) {
		schedMetrics.IncSweepSkipped(obsmetrics.SchedulerSweepSkipReasonInFlight)
		return
	}
	defer s.sweeping.Store(false)

	token, ok, err := s.lease.TryAcquire(ctx, s.cfg.LeaseTTL)
	if err != nil {
		s.log.Warn("sweep lease acquire failed", zap.Error(err))
		return
	}
	if !ok {
		schedMetrics.IncSweepSkipped(obsmetrics.SchedulerSweepSkipReasonLeaseHeld)
		return
	}
	defer func() {
		if releaseErr := s.lease.Release(ctx, token); releaseErr != nil {
			s.log.Warn("sweep lease release failed", zap.Error(releaseErr))
		}
	}()

	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("scheduler run failed", zap.Error(err))
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list enables everything.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ExpireReservationsJob completes active reservations whose end time has
// passed and frees their slots. The guarded status update means a racing
// cancel or a second sweeper completes each reservation at most once.
func (s *Scheduler) ExpireReservationsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "expire_reservations", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	var jobErr error
	schedMetrics := obsmetrics.Scheduler()

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		var claimed []WorkReservation
		var completed []WorkReservation
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			claimed, err = s.fetchReservationsForWork(ctx, tx, now, s.cfg.BatchSize)
			if err != nil {
				return err
			}
			for _, reservation := range claimed {
				s.logReservationClaimed(ctx, "expire_reservations", reservation)
				if err := guard.EnsureReservationCanComplete(reservation.Status, reservation.EndTime, now); err != nil {
					continue
				}
				ok, err := s.reservationRepo.UpdateStatusGuarded(
					ctx, tx, reservation.ID,
					reservationdomain.ReservationStatusActive,
					reservationdomain.ReservationStatusCompleted,
					now,
				)
				if err != nil {
					return err
				}
				if ok {
					completed = append(completed, reservation)
				}
			}
			return nil
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			schedMetrics.IncBatchDeferred("expire_reservations", obsmetrics.ClassifySchedulerJobReason(err))
			s.logSchedulerError(ctx, run, "scheduler.reservation.expire.failed", "expire_reservations", err)
			return jobErr
		}
		if len(claimed) == 0 {
			break
		}

		// Releases run after the completion commit. A failed release never
		// reverts the reservation; it lands in the reconciliation queue.
		for _, reservation := range completed {
			if s.metrics != nil {
				s.metrics.RecordReservationEvent(ctx, "expired")
			}
			if err := s.coordinator.Release(ctx, s.db, reservation.SlotID); err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.slot.release.failed", "expire_reservations", err,
					zap.String("reservation_id", idString(reservation.ID)),
					zap.String("slot_id", idString(reservation.SlotID)),
				)
				s.enqueueReconciliation(ctx, reservation, now)
			}
		}

		run.AddProcessed(len(completed))
		if len(completed) > 0 {
			schedMetrics.AddBatchProcessed("expire_reservations", "reservations", len(completed))
		}
	}

	return jobErr
}

func (s *Scheduler) enqueueReconciliation(ctx context.Context, reservation WorkReservation, now time.Time) {
	reservationID := reservation.ID
	entry := &occupancy.Reconciliation{
		ID:            s.genID.Generate(),
		SlotID:        reservation.SlotID,
		ReservationID: &reservationID,
		Status:        occupancy.ReconciliationStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.reconRepo.Enqueue(ctx, s.db, entry); err != nil {
		s.logger(ctx).Error("scheduler.reconciliation.enqueue.failed",
			zap.String("reservation_id", idString(reservation.ID)),
			zap.String("slot_id", idString(reservation.SlotID)),
			zap.Error(err),
		)
	}
}

// ReconcileReleasesJob retries slot releases that failed at their origin.
// Entries are claimed with SKIP LOCKED and either deleted on success or
// marked for another attempt, up to the configured maximum.
func (s *Scheduler) ReconcileReleasesJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "reconcile_releases", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	var jobErr error
	schedMetrics := obsmetrics.Scheduler()

	for {
		if ctx.Err() != nil {
			jobErr = errors.Join(jobErr, ctx.Err())
			break
		}

		released := 0
		claimed := 0
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			entries, err := s.reconRepo.ClaimPending(ctx, tx, s.cfg.BatchSize)
			if err != nil {
				return err
			}
			claimed = len(entries)
			for _, entry := range entries {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				releaseErr := s.coordinator.Release(ctx, tx, entry.SlotID)
				if releaseErr == nil {
					if err := s.reconRepo.Delete(ctx, tx, entry.ID); err != nil {
						return err
					}
					released++
					continue
				}
				jobErr = errors.Join(jobErr, releaseErr)
				s.logSchedulerError(ctx, run, "scheduler.reconciliation.release.failed", "reconcile_releases", releaseErr,
					zap.String("slot_id", idString(entry.SlotID)),
					zap.Int("attempts", entry.Attempts+1),
				)
				if entry.Attempts+1 >= s.cfg.ReconcileMaxAttempts {
					if err := s.reconRepo.MarkExhausted(ctx, tx, entry.ID, now); err != nil {
						return err
					}
					s.logger(ctx).Error("scheduler.reconciliation.exhausted",
						zap.String("slot_id", idString(entry.SlotID)),
						zap.Int("attempts", entry.Attempts+1),
					)
					continue
				}
				if err := s.reconRepo.MarkAttempt(ctx, tx, entry.ID, releaseErr.Error(), now); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			schedMetrics.IncBatchDeferred("reconcile_releases", obsmetrics.ClassifySchedulerJobReason(err))
			s.logSchedulerError(ctx, run, "scheduler.reconciliation.batch.failed", "reconcile_releases", err)
			break
		}
		if claimed == 0 {
			break
		}

		run.AddProcessed(released)
		if released > 0 {
			schedMetrics.AddBatchProcessed("reconcile_releases", "reconciliations", released)
		}
		// A pass that releases nothing would reclaim the same rows forever.
		if released == 0 {
			break
		}
	}

	if depth, err := s.reconRepo.CountPending(ctx, s.db); err == nil {
		schedMetrics.SetReconcileQueueDepth(depth)
	}

	return jobErr
}
