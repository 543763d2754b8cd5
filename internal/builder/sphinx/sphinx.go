// Package sphinx adapts the Sphinx documentation generator. The platform
// appends its own settings to the project's conf.py before invoking
// sphinx-build; the appendix carries the context the theme and footer need
// to render view/edit-source links.
package sphinx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docsforge/internal/builder"
	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/project"
)

func init() {
	builder.Register(project.DoctypeSphinx, func(b *builder.Build) builder.Builder {
		return newBase(b, project.DoctypeSphinx, "html")
	})
	builder.Register(project.DoctypeSphinxHTMLDir, func(b *builder.Build) builder.Builder {
		return newBase(b, project.DoctypeSphinxHTMLDir, "dirhtml")
	})
	builder.Register(project.DoctypeSphinxSingleHTML, func(b *builder.Build) builder.Builder {
		return newBase(b, project.DoctypeSphinxSingleHTML, "singlehtml")
	})
}

// Base drives sphinx-build. The variants only differ in the sphinx builder
// name passed on the command line.
type Base struct {
	build         *builder.Build
	doctype       string
	sphinxBuilder string

	configFile string // resolved conf.py path, cached
}

func newBase(b *builder.Build, doctype, sphinxBuilder string) *Base {
	return &Base{build: b, doctype: doctype, sphinxBuilder: sphinxBuilder}
}

// Doctype implements builder.Builder.
func (s *Base) Doctype() string { return s.doctype }

// SphinxBuilder returns the -b argument passed to sphinx-build.
func (s *Base) SphinxBuilder() string { return s.sphinxBuilder }

// DocsDir implements builder.Builder. When the project pins its conf.py the
// docs live next to it; otherwise the conventional docs directory is used.
func (s *Base) DocsDir() string {
	if file, err := s.ConfigFile(); err == nil {
		return filepath.Dir(file)
	}
	return builder.FindDocsDir(s.build.CheckoutPath)
}

// ConfigFile resolves the project's conf.py. A path pinned in the build
// config wins; otherwise the checkout is searched. Zero or multiple
// candidates are distinct, named failures.
func (s *Base) ConfigFile() (string, error) {
	if s.configFile != "" {
		return s.configFile, nil
	}

	if cfg := s.build.Config; cfg != nil && cfg.Sphinx != nil && cfg.Sphinx.Configuration != "" {
		path := filepath.Join(s.build.CheckoutPath, cfg.Sphinx.Configuration)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("configured sphinx file %q: %w", cfg.Sphinx.Configuration, builder.ErrConfigNotFound)
		}
		s.configFile = path
		return path, nil
	}

	path, err := builder.FindConfigFile(s.build.CheckoutPath, "conf.py")
	if err != nil {
		return "", err
	}
	s.configFile = path
	return path, nil
}

// Params is the template context injected into conf.py.
type Params struct {
	Project          string
	ProjectName      string
	Version          string
	ConfPyPath       string
	SphinxBuilder    string
	StaticPrefix     string
	ProductionDomain string
	AnalyticsCode    string
	SingleVersion    bool
}

// ConfigParams derives the values appended to conf.py. ConfPyPath is the
// slash-wrapped directory fragment of conf.py relative to the checkout
// ("conf.py" -> "/", "docs/conf.py" -> "/docs/"); themes use it to build
// view/edit-source links.
func (s *Base) ConfigParams() (*Params, error) {
	file, err := s.ConfigFile()
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(s.build.CheckoutPath, filepath.Dir(file))
	if err != nil {
		return nil, fmt.Errorf("conf.py outside checkout: %w", err)
	}
	confPyPath := "/"
	if rel != "." {
		confPyPath = "/" + filepath.ToSlash(rel) + "/"
	}

	return &Params{
		Project:          s.build.Project.Slug,
		ProjectName:      s.build.Project.Name,
		Version:          s.build.Version.Slug,
		ConfPyPath:       confPyPath,
		SphinxBuilder:    s.sphinxBuilder,
		StaticPrefix:     s.build.Media.StaticPrefix,
		ProductionDomain: s.build.Media.ProductionDomain,
		AnalyticsCode:    s.build.Project.AnalyticsCode,
		SingleVersion:    s.build.Project.SingleVersion,
	}, nil
}

// AppendConfig implements builder.Builder. The rendered appendix is appended
// to conf.py and the resulting file is shown in the build log.
func (s *Base) AppendConfig(ctx context.Context) error {
	params, err := s.ConfigParams()
	if err != nil {
		return err
	}
	file, err := s.ConfigFile()
	if err != nil {
		return err
	}

	appendix, err := renderAppendix(params)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(file, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open conf.py for append: %w", err)
	}
	if _, err := f.WriteString(appendix); err != nil {
		_ = f.Close()
		return fmt.Errorf("append to conf.py: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close conf.py: %w", err)
	}

	slog.Debug("Appended platform configuration",
		logfields.Project(s.build.Project.Slug), logfields.Path(file))

	rel, _ := filepath.Rel(s.build.CheckoutPath, file)
	_, err = s.build.Env.Run(ctx, buildenv.Command{
		Argv: []string{"cat", rel},
		Cwd:  s.build.CheckoutPath,
	})
	return err
}

// Run implements builder.Builder.
func (s *Base) Run(ctx context.Context) error {
	docsDir := s.DocsDir()
	argv := []string{
		"python", "-m", "sphinx",
		"-T", "-b", s.sphinxBuilder,
		"-d", filepath.Join("_build", "doctrees"),
		"-D", fmt.Sprintf("language=%s", language(s.build.Project.Language)),
	}
	if cfg := s.build.Config; cfg != nil && cfg.Sphinx != nil && cfg.Sphinx.FailOnWarning {
		argv = append(argv, "-W", "--keep-going")
	}
	argv = append(argv, ".", s.build.OutputPath)

	_, err := s.build.Env.Run(ctx, buildenv.Command{
		Argv:    argv,
		Cwd:     docsDir,
		BinPath: s.build.PythonBinPath,
	})
	return err
}

func language(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}
