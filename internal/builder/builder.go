// Package builder defines the adapter layer between the platform and the
// external documentation generators. A Builder prepares a project checkout,
// injects platform configuration into the tool's own config file and invokes
// the tool through the build environment.
package builder

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/config"
	"git.home.luguber.info/inful/docsforge/internal/project"
)

// Build is the per-build context shared by all builders.
type Build struct {
	Project *project.Project
	Version *project.Version
	Config  *config.ProjectConfig
	Media   config.MediaConfig
	Env     buildenv.Environment

	CheckoutPath string
	OutputPath   string
	// PythonBinPath is the bin directory of the build's python environment.
	// Empty when the build runs against system tools.
	PythonBinPath string
}

// PythonBin resolves a binary inside the build's python environment.
func (b *Build) PythonBin(name string) string {
	if b.PythonBinPath == "" {
		return name
	}
	return filepath.Join(b.PythonBinPath, name)
}

// Builder adapts one documentation generator.
type Builder interface {
	// Doctype returns the doctype this builder serves.
	Doctype() string

	// AppendConfig injects platform configuration into the project's own
	// generator config file. It must run before Run.
	AppendConfig(ctx context.Context) error

	// Run invokes the external generator and writes output to OutputPath.
	Run(ctx context.Context) error

	// DocsDir returns the directory holding the documentation sources.
	DocsDir() string
}
