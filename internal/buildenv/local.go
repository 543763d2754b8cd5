package buildenv

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/metrics"
)

// LocalEnvironment executes commands directly on the host.
type LocalEnvironment struct {
	recorder metrics.Recorder

	mu       sync.Mutex
	commands []*CommandResult
}

// NewLocalEnvironment creates a host-local build environment.
// recorder may be nil; metrics are skipped in that case.
func NewLocalEnvironment(recorder metrics.Recorder) *LocalEnvironment {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &LocalEnvironment{recorder: recorder}
}

// Run implements Environment.
func (e *LocalEnvironment) Run(ctx context.Context, cmd Command) (*CommandResult, error) {
	if len(cmd.Argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Cwd
	c.Env = commandEnv(cmd)

	var buf bytes.Buffer
	if cmd.RecordOutput {
		c.Stdout = &buf
		c.Stderr = &buf
	} else {
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
	}

	slog.Info("Running build command",
		logfields.Command(strings.Join(cmd.Argv, " ")),
		logfields.Path(cmd.Cwd))

	start := time.Now()
	err := c.Run()
	elapsed := time.Since(start)

	result := &CommandResult{
		Argv:     cmd.Argv,
		Cwd:      cmd.Cwd,
		Output:   buf.String(),
		Duration: elapsed,
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	e.mu.Lock()
	e.commands = append(e.commands, result)
	e.mu.Unlock()

	e.recorder.ObserveCommandDuration(cmd.Argv[0], elapsed, err == nil)

	if err != nil {
		slog.Error("Build command failed",
			logfields.Command(strings.Join(cmd.Argv, " ")),
			logfields.ExitCode(result.ExitCode),
			logfields.Error(err))
		return result, fmt.Errorf("command %q failed: %w", cmd.Argv[0], err)
	}
	return result, nil
}

// Commands implements Environment.
func (e *LocalEnvironment) Commands() []*CommandResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*CommandResult, len(e.commands))
	copy(out, e.commands)
	return out
}

// commandEnv builds the process environment, putting BinPath first on PATH.
func commandEnv(cmd Command) []string {
	env := os.Environ()
	env = append(env, cmd.Env...)
	if cmd.BinPath != "" {
		env = append(env, fmt.Sprintf("PATH=%s%c%s", cmd.BinPath, os.PathListSeparator, os.Getenv("PATH")))
	}
	return env
}
