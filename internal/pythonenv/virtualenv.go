package pythonenv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/config"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/project"
)

// Virtualenv is the default environment backend.
type Virtualenv struct {
	opts Options
}

// BinPath implements Manager.
func (v *Virtualenv) BinPath() string { return filepath.Join(v.opts.EnvPath, "bin") }

// Setup implements Manager. An existing environment is removed first so every
// build starts from a known state.
func (v *Virtualenv) Setup(ctx context.Context) error {
	if err := os.RemoveAll(v.opts.EnvPath); err != nil {
		return fmt.Errorf("remove stale environment: %w", err)
	}

	slog.Info("Creating virtualenv",
		logfields.Project(v.opts.Project.Slug), logfields.Path(v.opts.EnvPath))

	_, err := v.opts.Env.Run(ctx, buildenv.Command{
		Argv: []string{"python", "-m", "virtualenv", v.opts.EnvPath},
		Cwd:  v.opts.CheckoutPath,
	})
	return err
}

// coreRequirements is the platform's requirement set for the build's doctype.
// Legacy pins stay until the per-project feature flags migrate everyone off
// them.
func (v *Virtualenv) coreRequirements() []string {
	p := v.opts.Project

	reqs := []string{"pygments", "setuptools", "docutils", "mock", "pillow", "alabaster"}
	if v.opts.Doctype == project.DoctypeMkDocs {
		if p.HasFeature(project.FeatureLegacyMkDocs) {
			return append(reqs, "mkdocs==0.17.3")
		}
		return append(reqs, project.FeatureValue(p,
			project.FeatureInstallLatestCoreRequirements, "mkdocs", "mkdocs<1.1"))
	}

	if p.HasFeature(project.FeatureInstallLatestCoreRequirements) ||
		p.HasFeature(project.FeatureUseLatestSphinx) {
		reqs = append(reqs, "sphinx")
	} else {
		reqs = append(reqs, "sphinx<2")
	}
	return append(reqs, project.FeatureValue(p,
		project.FeatureInstallLatestCoreRequirements,
		[]string{"sphinx-rtd-theme", "docsforge-sphinx-ext"},
		[]string{"sphinx-rtd-theme<0.5", "docsforge-sphinx-ext<1.1"})...)
}

// InstallCore implements Manager.
func (v *Virtualenv) InstallCore(ctx context.Context) error {
	argv := append(v.pip(), "install", "--upgrade", "--no-cache-dir")
	argv = append(argv, v.coreRequirements()...)

	_, err := v.opts.Env.Run(ctx, buildenv.Command{
		Argv:    argv,
		Cwd:     v.opts.CheckoutPath,
		BinPath: v.BinPath(),
	})
	return err
}

// InstallUserRequirements implements Manager. Declared install steps win;
// without any, a conventional requirements file is searched for, and finding
// none is not an error.
func (v *Virtualenv) InstallUserRequirements(ctx context.Context) error {
	if cfg := v.opts.Config; cfg != nil && len(cfg.Python.Install) > 0 {
		for _, step := range cfg.Python.Install {
			if err := v.installStep(ctx, step); err != nil {
				return err
			}
		}
		return nil
	}

	file := findRequirementsFile(v.opts.CheckoutPath, v.docsDirGuess())
	if file == "" {
		slog.Debug("No requirements file found", logfields.Project(v.opts.Project.Slug))
		return nil
	}
	return v.installRequirementsFile(ctx, file)
}

func (v *Virtualenv) installStep(ctx context.Context, step config.PythonInstall) error {
	if step.Requirements != "" {
		return v.installRequirementsFile(ctx, step.Requirements)
	}

	path := step.Path
	if path == "" {
		path = "."
	}
	if step.Method == "setuptools" {
		_, err := v.opts.Env.Run(ctx, buildenv.Command{
			Argv:    []string{"python", filepath.Join(path, "setup.py"), "install", "--force"},
			Cwd:     v.opts.CheckoutPath,
			BinPath: v.BinPath(),
		})
		return err
	}

	target := path
	if len(step.ExtraRequirements) > 0 {
		target = fmt.Sprintf("%s[%s]", path, strings.Join(step.ExtraRequirements, ","))
	}
	argv := append(v.pip(), "install")
	if v.opts.Project.HasFeature(project.FeaturePipAlwaysUpgrade) {
		argv = append(argv, "--upgrade")
	}
	argv = append(argv, "--no-cache-dir", target)

	_, err := v.opts.Env.Run(ctx, buildenv.Command{
		Argv:    argv,
		Cwd:     v.opts.CheckoutPath,
		BinPath: v.BinPath(),
	})
	return err
}

func (v *Virtualenv) installRequirementsFile(ctx context.Context, file string) error {
	argv := append(v.pip(), "install")
	if v.opts.Project.HasFeature(project.FeaturePipAlwaysUpgrade) {
		argv = append(argv, "--upgrade")
	}
	argv = append(argv, "--exists-action=w", "--no-cache-dir", "-r", file)

	_, err := v.opts.Env.Run(ctx, buildenv.Command{
		Argv:    argv,
		Cwd:     v.opts.CheckoutPath,
		BinPath: v.BinPath(),
	})
	return err
}

func (v *Virtualenv) pip() []string {
	return []string{"python", "-m", "pip"}
}

// docsDirGuess mirrors the builders' conventional docs dir probe without
// importing the builder package.
func (v *Virtualenv) docsDirGuess() string {
	for _, candidate := range []string{"docs", "doc"} {
		path := filepath.Join(v.opts.CheckoutPath, candidate)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return v.opts.CheckoutPath
}
