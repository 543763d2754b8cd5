// Package build runs the complete build pipeline for one project version.
// All execution paths (CLI, daemon, watch mode) route through Service.
package build

import (
	"context"
	"time"
)

// Service executes documentation builds.
type Service interface {
	// Run executes checkout, environment setup, config injection, the
	// generator itself, search indexing and publication.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request identifies what to build and how.
type Request struct {
	// ProjectSlug and VersionSlug select the build target in the store.
	ProjectSlug string
	VersionSlug string

	// SkipSync builds without publishing. Watch mode uses it.
	SkipSync bool

	// Trigger is recorded with the build: webhook, schedule or manual.
	Trigger string
}

// Status is the final state of a build.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Result is the outcome of one build run.
type Result struct {
	BuildID    string
	Status     Status
	OutputPath string
	Doctype    string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Err carries the failure when Status is not success.
	Err error
}
