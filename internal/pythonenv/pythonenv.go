// Package pythonenv manages the isolated Python environment a documentation
// build runs in. Two backends exist: virtualenv (the default) and conda (for
// projects with native dependencies). Both expose the environment's bin
// directory so builders can resolve python and the doc tools from it.
package pythonenv

import (
	"context"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/config"
	"git.home.luguber.info/inful/docsforge/internal/project"
)

// Options carries everything an environment backend needs for one build.
type Options struct {
	Project *project.Project
	Version *project.Version
	Config  *config.ProjectConfig
	Env     buildenv.Environment

	CheckoutPath string
	// EnvPath is where the environment lives, normally
	// <workspace>/<project>/envs/<version>.
	EnvPath string
	// Doctype selects the core requirement set.
	Doctype string
}

// Manager creates the environment and installs what the build needs into it.
type Manager interface {
	// Setup creates a fresh environment at EnvPath.
	Setup(ctx context.Context) error

	// InstallCore installs the platform's own requirements (doc tool,
	// theme, platform extension).
	InstallCore(ctx context.Context) error

	// InstallUserRequirements installs what the project declares in its
	// build config, falling back to requirements file discovery.
	InstallUserRequirements(ctx context.Context) error

	// BinPath returns the environment's bin directory.
	BinPath() string
}

// New selects the backend from the project's build config.
func New(opts Options) Manager {
	if opts.Config != nil && opts.Config.Conda != nil {
		return &Conda{opts: opts}
	}
	return &Virtualenv{opts: opts}
}

// requirementsFileNames are probed in order during discovery.
var requirementsFileNames = []string{"pip_requirements.txt", "requirements.txt"}

// findRequirementsFile looks for a conventional requirements file, first in
// the docs directory and then in the checkout root. Returns a path relative
// to the checkout, or empty when nothing matches.
func findRequirementsFile(checkoutPath, docsDir string) string {
	dirs := []string{docsDir, checkoutPath}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, name := range requirementsFileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				if rel, err := filepath.Rel(checkoutPath, path); err == nil {
					return rel
				}
			}
		}
	}
	return ""
}
