package sphinx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/docsforge/internal/builder"
	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/config"
	"git.home.luguber.info/inful/docsforge/internal/project"
)

func testBuild(t *testing.T) (*builder.Build, *buildenv.RecordingEnvironment) {
	t.Helper()
	env := buildenv.NewRecordingEnvironment()
	return &builder.Build{
		Project: &project.Project{
			Slug: "pip",
			Name: "Pip",
		},
		Version: &project.Version{Slug: "latest"},
		Media: config.MediaConfig{
			StaticPrefix:     "/_/static",
			ProductionDomain: "docs.example.com",
		},
		Env:          env,
		CheckoutPath: t.TempDir(),
		OutputPath:   filepath.Join(t.TempDir(), "html"),
	}, env
}

func writeConf(t *testing.T, checkout, rel string) string {
	t.Helper()
	path := filepath.Join(checkout, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("project = 'pip'\n"), 0o644); err != nil {
		t.Fatalf("write conf.py: %v", err)
	}
	return path
}

func TestConfPyPath(t *testing.T) {
	cases := []struct {
		rel  string
		want string
	}{
		{"conf.py", "/"},
		{"docs/conf.py", "/docs/"},
		{"docs/src/conf.py", "/docs/src/"},
	}
	for _, tc := range cases {
		t.Run(tc.rel, func(t *testing.T) {
			b, _ := testBuild(t)
			writeConf(t, b.CheckoutPath, tc.rel)

			s := newBase(b, project.DoctypeSphinx, "html")
			params, err := s.ConfigParams()
			if err != nil {
				t.Fatalf("params: %v", err)
			}
			if params.ConfPyPath != tc.want {
				t.Fatalf("conf_py_path for %s: got %q, want %q", tc.rel, params.ConfPyPath, tc.want)
			}
		})
	}
}

func TestConfigFileMissing(t *testing.T) {
	b, _ := testBuild(t)
	s := newBase(b, project.DoctypeSphinx, "html")
	if _, err := s.ConfigFile(); !errors.Is(err, builder.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestConfigFileAmbiguous(t *testing.T) {
	b, _ := testBuild(t)
	writeConf(t, b.CheckoutPath, "conf.py")
	writeConf(t, b.CheckoutPath, "docs/conf.py")

	s := newBase(b, project.DoctypeSphinx, "html")
	if _, err := s.ConfigFile(); !errors.Is(err, builder.ErrConfigAmbiguous) {
		t.Fatalf("expected ErrConfigAmbiguous, got %v", err)
	}
}

func TestConfigFilePinned(t *testing.T) {
	b, _ := testBuild(t)
	// Two candidates, but the build config selects one.
	writeConf(t, b.CheckoutPath, "conf.py")
	want := writeConf(t, b.CheckoutPath, "docs/conf.py")
	b.Config = &config.ProjectConfig{
		Sphinx: &config.SphinxConfig{Configuration: "docs/conf.py"},
	}

	s := newBase(b, project.DoctypeSphinx, "html")
	got, err := s.ConfigFile()
	if err != nil {
		t.Fatalf("config file: %v", err)
	}
	if got != want {
		t.Fatalf("pinned file not used: got %s", got)
	}
}

func TestConfigFilePinnedMissing(t *testing.T) {
	b, _ := testBuild(t)
	b.Config = &config.ProjectConfig{
		Sphinx: &config.SphinxConfig{Configuration: "nosuch/conf.py"},
	}

	s := newBase(b, project.DoctypeSphinx, "html")
	if _, err := s.ConfigFile(); !errors.Is(err, builder.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestAppendConfig(t *testing.T) {
	b, env := testBuild(t)
	path := writeConf(t, b.CheckoutPath, "docs/conf.py")

	s := newBase(b, project.DoctypeSphinx, "html")
	if err := s.AppendConfig(context.Background()); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read conf.py: %v", err)
	}
	conf := string(data)
	if !strings.HasPrefix(conf, "project = 'pip'\n") {
		t.Fatal("original content not preserved")
	}
	for _, want := range []string{
		`"conf_py_path": '/docs/'`,
		`"slug": 'pip'`,
		`"current_version": 'latest'`,
		`"production_domain": 'docs.example.com'`,
		`'/_/static' + "/css/badge_only.css"`,
		`'/_/static' + "/core/js/docsforge-doc-embed.js"`,
	} {
		if !strings.Contains(conf, want) {
			t.Fatalf("appendix missing %q", want)
		}
	}

	// The modified file is echoed into the build log.
	if !env.Ran("cat", "docs/conf.py") {
		t.Fatalf("expected cat of conf.py, got %v", env.Commands())
	}
}

func TestRunCommand(t *testing.T) {
	b, env := testBuild(t)
	writeConf(t, b.CheckoutPath, "docs/conf.py")
	b.PythonBinPath = "/envs/pip/bin"

	s := newBase(b, project.DoctypeSphinxHTMLDir, "dirhtml")
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	cmds := env.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected one command, got %d", len(cmds))
	}
	argv := strings.Join(cmds[0].Argv, " ")
	if !strings.HasPrefix(argv, "python -m sphinx -T -b dirhtml") {
		t.Fatalf("unexpected argv: %s", argv)
	}
	if cmds[0].Cwd != filepath.Join(b.CheckoutPath, "docs") {
		t.Fatalf("run cwd should be docs dir, got %s", cmds[0].Cwd)
	}
}

func TestRunFailOnWarning(t *testing.T) {
	b, env := testBuild(t)
	writeConf(t, b.CheckoutPath, "conf.py")
	b.Config = &config.ProjectConfig{
		Sphinx: &config.SphinxConfig{FailOnWarning: true},
	}

	s := newBase(b, project.DoctypeSphinx, "html")
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	argv := strings.Join(env.Commands()[0].Argv, " ")
	if !strings.Contains(argv, "-W --keep-going") {
		t.Fatalf("fail-on-warning flags missing: %s", argv)
	}
}

func TestRegisteredDoctypes(t *testing.T) {
	for doctype, wantBuilder := range map[string]string{
		project.DoctypeSphinx:           "html",
		project.DoctypeSphinxHTMLDir:    "dirhtml",
		project.DoctypeSphinxSingleHTML: "singlehtml",
	} {
		bld, err := builder.New(doctype, &builder.Build{})
		if err != nil {
			t.Fatalf("%s not registered: %v", doctype, err)
		}
		base, ok := bld.(*Base)
		if !ok {
			t.Fatalf("%s: unexpected builder type %T", doctype, bld)
		}
		if base.SphinxBuilder() != wantBuilder {
			t.Fatalf("%s: sphinx builder %s, want %s", doctype, base.SphinxBuilder(), wantBuilder)
		}
	}
}
