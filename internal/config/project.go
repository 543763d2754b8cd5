package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Per-project build configuration (`.docsforge.yaml` in the repository root).
// This is the user-facing contract: it selects the doc tool, locates its
// configuration file and declares the Python environment the build needs.

// ProjectConfig is the parsed per-project build configuration
type ProjectConfig struct {
	Version int           `yaml:"version"`
	Formats []string      `yaml:"formats,omitempty"`
	Sphinx  *SphinxConfig `yaml:"sphinx,omitempty"`
	MkDocs  *MkDocsConfig `yaml:"mkdocs,omitempty"`
	Python  PythonConfig  `yaml:"python,omitempty"`
	Conda   *CondaConfig  `yaml:"conda,omitempty"`
}

// SphinxConfig selects the Sphinx builder and conf.py location
type SphinxConfig struct {
	Configuration string `yaml:"configuration,omitempty"` // Path to conf.py, relative to the repo root
	Builder       string `yaml:"builder,omitempty"`       // html, dirhtml or singlehtml
	FailOnWarning bool   `yaml:"fail_on_warning,omitempty"`
}

// MkDocsConfig locates the mkdocs.yml file
type MkDocsConfig struct {
	Configuration string `yaml:"configuration,omitempty"` // Path to mkdocs.yml, relative to the repo root
	FailOnWarning bool   `yaml:"fail_on_warning,omitempty"`
}

// PythonConfig declares what gets installed into the build environment
type PythonConfig struct {
	Install []PythonInstall `yaml:"install,omitempty"`
}

// PythonInstall is one install step: either a requirements file or a package path
type PythonInstall struct {
	Requirements      string   `yaml:"requirements,omitempty"`
	Path              string   `yaml:"path,omitempty"`
	Method            string   `yaml:"method,omitempty"` // "pip" or "setuptools"
	ExtraRequirements []string `yaml:"extra_requirements,omitempty"`
}

// IsRequirements reports whether this install step points at a requirements file.
func (i PythonInstall) IsRequirements() bool { return i.Requirements != "" || i.Path == "" }

// CondaConfig locates the conda environment file
type CondaConfig struct {
	Environment string `yaml:"environment"`
}

// Doctype returns the documentation tool selected by this config.
func (p *ProjectConfig) Doctype() string {
	if p.MkDocs != nil {
		return "mkdocs"
	}
	return "sphinx"
}

// projectConfigNames are probed in order inside the checkout root.
var projectConfigNames = []string{".docsforge.yaml", ".docsforge.yml"}

// LoadProjectConfig reads the per-project build config from a checkout.
// A missing file yields the zero-value default config (version 2, sphinx).
func LoadProjectConfig(checkoutPath string) (*ProjectConfig, error) {
	for _, name := range projectConfigNames {
		path := filepath.Join(checkoutPath, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read project config: %w", err)
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if cfg.Version != 0 && cfg.Version != 2 {
			return nil, fmt.Errorf("unsupported project config version %d in %s", cfg.Version, name)
		}
		return &cfg, nil
	}
	return DefaultProjectConfig(), nil
}

// DefaultProjectConfig is used when the repository carries no config file.
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{Version: 2}
}
