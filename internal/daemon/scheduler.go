package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docsforge/internal/logfields"
)

// Scheduler enqueues periodic rebuilds. Projects tracking a moving branch
// drift without them: pushes can be missed, and injected assets change.
type Scheduler struct {
	scheduler gocron.Scheduler
	enqueuer  Enqueuer
	// listJobs returns the jobs to enqueue on each tick, typically one per
	// active version.
	listJobs func() []*BuildJob
}

// NewScheduler creates an idle scheduler.
func NewScheduler(enqueuer Enqueuer, listJobs func() []*BuildJob) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, enqueuer: enqueuer, listJobs: listJobs}, nil
}

// ScheduleRebuilds registers the periodic rebuild task. Returns the job ID.
func (s *Scheduler) ScheduleRebuilds(interval time.Duration) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.tick),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		return "", fmt.Errorf("create rebuild job: %w", err)
	}
	return job.ID().String(), nil
}

func (s *Scheduler) tick() {
	jobs := s.listJobs()
	slog.Info("Enqueueing scheduled rebuilds", slog.Int("count", len(jobs)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, job := range jobs {
		if err := s.enqueuer.Enqueue(ctx, job); err != nil {
			slog.Error("Failed to enqueue scheduled rebuild",
				logfields.BuildID(job.ID),
				logfields.Project(job.Project), logfields.Error(err))
		}
	}
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running tick to finish.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
