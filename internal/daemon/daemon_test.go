package daemon

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestNewBuildJob(t *testing.T) {
	job := NewBuildJob("pip", "latest", TriggerWebhook)
	if job.ID == "" {
		t.Fatal("job ID not assigned")
	}
	if job.Project != "pip" || job.Version != "latest" || job.Trigger != TriggerWebhook {
		t.Fatalf("job fields wrong: %+v", job)
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}

	other := NewBuildJob("pip", "latest", TriggerWebhook)
	if other.ID == job.ID {
		t.Fatal("job IDs must be unique")
	}
}

func TestBuildJobRoundtrip(t *testing.T) {
	job := NewBuildJob("pip", "stable", TriggerSchedule)
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got BuildJob
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != job.ID || got.Trigger != TriggerSchedule {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []*BuildJob
	err  error
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, job *BuildJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func TestSchedulerTickEnqueuesAll(t *testing.T) {
	enq := &recordingEnqueuer{}
	s, err := NewScheduler(enq, func() []*BuildJob {
		return []*BuildJob{
			NewBuildJob("pip", "latest", TriggerSchedule),
			NewBuildJob("pip", "stable", TriggerSchedule),
		}
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	defer func() {
		_ = s.Stop()
	}()

	s.tick()
	if enq.count() != 2 {
		t.Fatalf("expected 2 enqueued jobs, got %d", enq.count())
	}
	if enq.jobs[0].Trigger != TriggerSchedule {
		t.Fatalf("trigger wrong: %+v", enq.jobs[0])
	}
}

func TestScheduleRebuilds(t *testing.T) {
	enq := &recordingEnqueuer{}
	s, err := NewScheduler(enq, func() []*BuildJob { return nil })
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	defer func() {
		_ = s.Stop()
	}()

	id, err := s.ScheduleRebuilds(time.Hour)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if id == "" {
		t.Fatal("empty schedule job ID")
	}
}
