package pythonenv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	errs "git.home.luguber.info/inful/docsforge/internal/errors"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/project"
)

// Conda backs builds that need native packages. The environment is created
// with --prefix so its layout matches the virtualenv one and BinPath stays
// uniform.
type Conda struct {
	opts Options
}

// BinPath implements Manager.
func (c *Conda) BinPath() string { return filepath.Join(c.opts.EnvPath, "bin") }

// environmentFile returns the user's environment.yml path relative to the
// checkout. Conda builds must declare it; there is no discovery.
func (c *Conda) environmentFile() (string, error) {
	if c.opts.Config == nil || c.opts.Config.Conda == nil || c.opts.Config.Conda.Environment == "" {
		return "", errs.ConfigRequired("conda.environment")
	}
	return c.opts.Config.Conda.Environment, nil
}

// Setup implements Manager.
func (c *Conda) Setup(ctx context.Context) error {
	file, err := c.environmentFile()
	if err != nil {
		return err
	}
	if err := os.RemoveAll(c.opts.EnvPath); err != nil {
		return fmt.Errorf("remove stale environment: %w", err)
	}

	if c.opts.Project.HasFeature(project.FeatureCondaAppendCoreRequirements) {
		if err := c.appendCoreRequirements(file); err != nil {
			return err
		}
	}

	slog.Info("Creating conda environment",
		logfields.Project(c.opts.Project.Slug), logfields.Path(c.opts.EnvPath))

	_, err = c.opts.Env.Run(ctx, buildenv.Command{
		Argv: []string{
			"conda", "env", "create",
			"--quiet",
			"--prefix", c.opts.EnvPath,
			"--file", file,
		},
		Cwd: c.opts.CheckoutPath,
	})
	return err
}

// condaCoreDependencies are resolved by conda itself; pip inside the
// environment handles the rest.
var condaCoreDependencies = []string{"mock", "pillow", "pip"}

func (c *Conda) pipCoreDependencies() []string {
	if c.opts.Doctype == project.DoctypeMkDocs {
		return []string{"mkdocs"}
	}
	return []string{"sphinx", "sphinx-rtd-theme", "docsforge-sphinx-ext"}
}

// appendCoreRequirements merges the platform requirements into the user's
// environment.yml before `conda env create`, so one solver run covers both.
// User entries are never removed or reordered.
func (c *Conda) appendCoreRequirements(file string) error {
	path := filepath.Join(c.opts.CheckoutPath, file)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read conda environment file: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse conda environment file: %w", err)
	}
	env, ok := doc.(map[string]any)
	if !ok {
		return errs.ValidationFailed("conda.environment", "environment file must be a mapping")
	}

	deps, _ := env["dependencies"].([]any)
	var pipSection map[string]any
	for _, dep := range deps {
		if m, ok := dep.(map[string]any); ok {
			if _, ok := m["pip"]; ok {
				pipSection = m
				break
			}
		}
	}

	for _, name := range condaCoreDependencies {
		if !containsString(deps, name) {
			deps = append(deps, name)
		}
	}

	if pipSection == nil {
		pipSection = map[string]any{"pip": []any{}}
		deps = append(deps, pipSection)
	}
	pipDeps, _ := pipSection["pip"].([]any)
	for _, name := range c.pipCoreDependencies() {
		if !containsString(pipDeps, name) {
			pipDeps = append(pipDeps, name)
		}
	}
	pipSection["pip"] = pipDeps
	env["dependencies"] = deps

	out, err := yaml.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal conda environment file: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write conda environment file: %w", err)
	}

	slog.Debug("Appended core requirements to conda environment",
		logfields.Project(c.opts.Project.Slug), logfields.Path(path))
	return nil
}

func containsString(list []any, s string) bool {
	for _, item := range list {
		if v, ok := item.(string); ok && v == s {
			return true
		}
	}
	return false
}

// InstallCore implements Manager. With the append feature the solver already
// installed everything; without it the platform extension still has to go in
// through pip.
func (c *Conda) InstallCore(ctx context.Context) error {
	if c.opts.Project.HasFeature(project.FeatureCondaAppendCoreRequirements) {
		return nil
	}
	_, err := c.opts.Env.Run(ctx, buildenv.Command{
		Argv:    append([]string{"python", "-m", "pip", "install", "--no-cache-dir"}, c.pipCoreDependencies()...),
		Cwd:     c.opts.CheckoutPath,
		BinPath: c.BinPath(),
	})
	return err
}

// InstallUserRequirements implements Manager. The environment file already
// covers the user's dependencies; declared pip install steps still run on top.
func (c *Conda) InstallUserRequirements(ctx context.Context) error {
	if c.opts.Config == nil || len(c.opts.Config.Python.Install) == 0 {
		return nil
	}
	v := &Virtualenv{opts: c.opts}
	return v.InstallUserRequirements(ctx)
}
