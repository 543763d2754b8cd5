package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docsforge/internal/logfields"
)

// Manager handles build workspace operations (both temporary and persistent).
// A workspace holds one project's checkouts and build output:
//
//	<root>/<project>/checkouts/<version>
//	<root>/<project>/artifacts/<version>/<format>
type Manager struct {
	baseDir    string
	workDir    string
	persistent bool // If true, use baseDir directly without timestamps
}

// NewManager creates a workspace manager with ephemeral timestamped directories
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{
		baseDir:    baseDir,
		persistent: false,
	}
}

// NewPersistentManager creates a workspace manager that uses a persistent
// directory. The workspace directory is fixed (baseDir/subdirName) and not
// cleaned up on Cleanup(), which keeps checkouts for incremental fetches.
func NewPersistentManager(baseDir, subdirName string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if subdirName == "" {
		subdirName = "builds"
	}
	return &Manager{
		baseDir:    baseDir,
		workDir:    filepath.Join(baseDir, subdirName),
		persistent: true,
	}
}

// Create creates the workspace directory.
// For ephemeral mode: creates a timestamped directory.
// For persistent mode: ensures the fixed directory exists.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.workDir, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent workspace directory: %w", err)
		}
		slog.Info("Using persistent workspace", logfields.Path(m.workDir))
		return nil
	}

	timestamp := time.Now().Format("20060102-150405")
	workDir := filepath.Join(m.baseDir, fmt.Sprintf("docsforge-%s", timestamp))

	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	m.workDir = workDir
	slog.Info("Created workspace", logfields.Path(workDir))
	return nil
}

// Path returns the workspace root directory.
func (m *Manager) Path() string {
	return m.workDir
}

// CheckoutPath returns the checkout directory for a project version.
func (m *Manager) CheckoutPath(projectSlug, versionSlug string) string {
	return filepath.Join(m.workDir, projectSlug, "checkouts", versionSlug)
}

// ArtifactPath returns the output directory for one build format of a version.
func (m *Manager) ArtifactPath(projectSlug, versionSlug, format string) string {
	return filepath.Join(m.workDir, projectSlug, "artifacts", versionSlug, format)
}

// EnvPath returns the python environment directory for a project version.
func (m *Manager) EnvPath(projectSlug, versionSlug string) string {
	return filepath.Join(m.workDir, projectSlug, "envs", versionSlug)
}

// EnsureDir creates a directory inside the workspace.
func (m *Manager) EnsureDir(path string) error {
	if m.workDir == "" {
		return fmt.Errorf("workspace not created")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Cleanup removes the workspace directory.
// For persistent mode: does nothing (keeps checkouts for incremental builds).
// For ephemeral mode: removes the timestamped directory.
func (m *Manager) Cleanup() error {
	if m.workDir == "" {
		return nil
	}

	if m.persistent {
		slog.Debug("Skipping cleanup for persistent workspace", logfields.Path(m.workDir))
		return nil
	}

	if err := os.RemoveAll(m.workDir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}

	slog.Info("Cleaned up workspace", logfields.Path(m.workDir))
	m.workDir = ""
	return nil
}
