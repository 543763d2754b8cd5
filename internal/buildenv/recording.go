package buildenv

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// RecordingEnvironment records commands without executing them. Tests use it
// to assert on the exact command sequence a builder issues, and can script
// failures for specific argv prefixes.
type RecordingEnvironment struct {
	mu       sync.Mutex
	commands []*CommandResult
	failures map[string]error // argv[0] (or joined prefix) -> error
	outputs  map[string]string
}

// NewRecordingEnvironment creates an environment that swallows all commands.
func NewRecordingEnvironment() *RecordingEnvironment {
	return &RecordingEnvironment{
		failures: map[string]error{},
		outputs:  map[string]string{},
	}
}

// FailOn makes commands whose joined argv starts with prefix return err.
func (e *RecordingEnvironment) FailOn(prefix string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[prefix] = err
}

// OutputFor sets the recorded output for commands starting with prefix.
func (e *RecordingEnvironment) OutputFor(prefix, output string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outputs[prefix] = output
}

// Run implements Environment.
func (e *RecordingEnvironment) Run(_ context.Context, cmd Command) (*CommandResult, error) {
	if len(cmd.Argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	joined := strings.Join(cmd.Argv, " ")

	e.mu.Lock()
	defer e.mu.Unlock()

	result := &CommandResult{Argv: cmd.Argv, Cwd: cmd.Cwd}
	for prefix, out := range e.outputs {
		if strings.HasPrefix(joined, prefix) {
			result.Output = out
		}
	}
	e.commands = append(e.commands, result)

	for prefix, err := range e.failures {
		if strings.HasPrefix(joined, prefix) && err != nil {
			result.ExitCode = 1
			return result, err
		}
	}
	return result, nil
}

// Commands implements Environment.
func (e *RecordingEnvironment) Commands() []*CommandResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*CommandResult, len(e.commands))
	copy(out, e.commands)
	return out
}

// Ran reports whether any recorded command starts with the given argv prefix.
func (e *RecordingEnvironment) Ran(prefix ...string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	want := strings.Join(prefix, " ")
	for _, c := range e.commands {
		if strings.HasPrefix(strings.Join(c.Argv, " "), want) {
			return true
		}
	}
	return false
}
