package scheduler

import (
	"fmt"
	"time"

	"evcharge/pkg/logger"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs periodic housekeeping jobs (rate limiter and idempotency
// eviction) for a single process.
type Scheduler struct {
	inner gocron.Scheduler
	log   *logger.Logger
}

func New(log *logger.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{inner: s, log: log.Component("scheduler")}, nil
}

// Every registers fn to run at a fixed interval. Overlapping runs of the same
// job are skipped.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	job, err := s.inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			fn()
			s.log.Debug("Scheduled job finished", "job", name, "duration_ms", time.Since(start).Milliseconds())
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.log.Info("Scheduled job registered", "job", name, "job_id", job.ID().String(), "interval", interval)
	return nil
}

func (s *Scheduler) Start() {
	s.inner.Start()
	s.log.Info("Scheduler started", "jobs", len(s.inner.Jobs()))
}

func (s *Scheduler) Shutdown() error {
	return s.inner.Shutdown()
}
