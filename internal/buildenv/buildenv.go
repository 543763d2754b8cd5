// Package buildenv abstracts command execution for documentation builds.
// Builders and python environments never call os/exec directly; everything
// goes through an Environment so commands are logged, timed and recordable.
package buildenv

import (
	"context"
	"time"
)

// Command describes one external command to run inside a build.
type Command struct {
	Argv []string
	Cwd  string
	// BinPath, when set, is prepended to PATH so tool wrappers inside the
	// python environment win over system binaries.
	BinPath string
	Env     []string
	// RecordOutput captures combined stdout/stderr into the result instead
	// of streaming it to the build log.
	RecordOutput bool
}

// CommandResult is the outcome of a finished command.
type CommandResult struct {
	Argv     []string
	Cwd      string
	ExitCode int
	Output   string
	Duration time.Duration
}

// Environment runs commands for a build and remembers what it ran.
type Environment interface {
	// Run executes a command. A non-zero exit status is returned as an
	// error; the result is returned in both cases when available.
	Run(ctx context.Context, cmd Command) (*CommandResult, error)

	// Commands returns the results of every command run so far, in order.
	Commands() []*CommandResult
}
