// Package daemon runs the build service: a NATS-backed job queue feeding
// build workers, plus a gocron schedule for periodic rebuilds.
package daemon

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Trigger identifies what caused a build job.
type Trigger string

const (
	TriggerWebhook  Trigger = "webhook"
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// BuildJob is one queued build request.
type BuildJob struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	Version   string    `json:"version"`
	Trigger   Trigger   `json:"trigger"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBuildJob creates a job with a fresh ID.
func NewBuildJob(project, version string, trigger Trigger) *BuildJob {
	return &BuildJob{
		ID:        uuid.NewString(),
		Project:   project,
		Version:   version,
		Trigger:   trigger,
		CreatedAt: time.Now().UTC(),
	}
}

// Enqueuer accepts build jobs. The queue implements it; tests substitute
// their own.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *BuildJob) error
}
