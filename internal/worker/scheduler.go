package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maktaba-app/maktaba/internal/repository"
)

// maintenanceSchedule maps each recurring job type to how often it
// should run. The scheduler enqueues a job only when none of that type
// is pending or running, so a slow run never stacks duplicates.
var maintenanceSchedule = map[string]time.Duration{
	JobTypeUsageReset:         time.Hour,
	JobTypeSessionCleanup:     6 * time.Hour,
	JobTypeSubscriptionExpiry: 15 * time.Minute,
}

// Scheduler enqueues the recurring maintenance jobs on a fixed cadence.
// It is safe to run one scheduler per process even with several worker
// replicas, since the duplicate check goes through the database.
type Scheduler struct {
	queries *repository.Queries
	config  Config
	logger  *slog.Logger

	lastRun map[string]time.Time

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewScheduler creates a scheduler. Start it with Start() and stop it
// with Stop().
func NewScheduler(queries *repository.Queries, config Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		queries: queries,
		config:  config,
		logger:  logger,
		lastRun: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the scheduling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("Scheduler started", "interval", s.config.ScheduleInterval)
}

// Stop signals the scheduler to stop and waits for the loop to exit.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	// Enqueue once at startup so a fresh deploy does not wait a full
	// cadence before the first maintenance pass.
	s.tick(ctx)

	ticker := time.NewTicker(s.config.ScheduleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick enqueues every due maintenance job that is not already queued.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()

	for jobType, every := range maintenanceSchedule {
		if last, ok := s.lastRun[jobType]; ok && now.Sub(last) < every {
			continue
		}

		pending, err := s.queries.CountPendingJobsByType(ctx, jobType)
		if err != nil {
			s.logger.Error("Failed to check pending jobs", "job_type", jobType, "error", err)
			continue
		}
		if pending > 0 {
			s.lastRun[jobType] = now
			continue
		}

		if _, err := EnqueueJob(ctx, s.queries, jobType, nil, WithPriority(PriorityLow)); err != nil {
			s.logger.Error("Failed to enqueue maintenance job", "job_type", jobType, "error", err)
			continue
		}

		s.lastRun[jobType] = now
		s.logger.Debug("Enqueued maintenance job", "job_type", jobType)
	}
}
