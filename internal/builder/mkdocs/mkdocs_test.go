package mkdocs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

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
			MediaURL:         "https://media.example.com/",
			ProductionDomain: "docs.example.com",
		},
		Env:          env,
		CheckoutPath: t.TempDir(),
		OutputPath:   filepath.Join(t.TempDir(), "site"),
	}, env
}

func writeMkDocsYML(t *testing.T, checkout, content string) string {
	t.Helper()
	path := filepath.Join(checkout, "mkdocs.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write mkdocs.yml: %v", err)
	}
	return path
}

func readBack(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read mkdocs.yml: %v", err)
	}
	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("parse rewritten mkdocs.yml: %v", err)
	}
	return cfg
}

func asStrings(t *testing.T, v any) []string {
	t.Helper()
	list, ok := v.([]any)
	if !ok {
		t.Fatalf("expected list, got %T", v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			t.Fatalf("expected string item, got %T", item)
		}
		out[i] = s
	}
	return out
}

func TestLoadConfigEmpty(t *testing.T) {
	b, _ := testBuild(t)
	writeMkDocsYML(t, b.CheckoutPath, "")

	_, err := New(b).loadConfig()
	if !errors.Is(err, ErrEmptyConfig) {
		t.Fatalf("expected ErrEmptyConfig, got %v", err)
	}
	if !errors.Is(err, ErrParse) {
		t.Fatal("ErrEmptyConfig should unwrap to ErrParse")
	}
}

func TestLoadConfigNotMapping(t *testing.T) {
	for name, content := range map[string]string{
		"scalar": "hello\n",
		"list":   "- a\n- b\n",
	} {
		t.Run(name, func(t *testing.T) {
			b, _ := testBuild(t)
			writeMkDocsYML(t, b.CheckoutPath, content)

			_, err := New(b).loadConfig()
			if !errors.Is(err, ErrNotMapping) {
				t.Fatalf("expected ErrNotMapping, got %v", err)
			}
			if !errors.Is(err, ErrParse) {
				t.Fatal("ErrNotMapping should unwrap to ErrParse")
			}
		})
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	b, _ := testBuild(t)
	writeMkDocsYML(t, b.CheckoutPath, "site_name: [unclosed\n")

	_, err := New(b).loadConfig()
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestAppendConfigInvalidDocsDir(t *testing.T) {
	b, _ := testBuild(t)
	writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\ndocs_dir:\n  - docs\n")

	err := New(b).AppendConfig(context.Background())
	var typeErr *InvalidTypeError
	if !errors.As(err, &typeErr) || typeErr.Key != "docs_dir" {
		t.Fatalf("expected InvalidTypeError for docs_dir, got %v", err)
	}
	if !errors.Is(err, ErrParse) {
		t.Fatal("InvalidTypeError should unwrap to ErrParse")
	}
}

func TestAppendConfigInvalidExtraAssets(t *testing.T) {
	for _, key := range []string{"extra_css", "extra_javascript"} {
		t.Run(key, func(t *testing.T) {
			b, _ := testBuild(t)
			writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\n"+key+": not-a-list\n")

			err := New(b).AppendConfig(context.Background())
			var typeErr *InvalidTypeError
			if !errors.As(err, &typeErr) || typeErr.Key != key {
				t.Fatalf("expected InvalidTypeError for %s, got %v", key, err)
			}
		})
	}
}

func TestAppendConfigDocsDirMustExist(t *testing.T) {
	b, _ := testBuild(t)
	writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\ndocs_dir: nosuch\n")

	err := New(b).AppendConfig(context.Background())
	if !errors.Is(err, ErrDocsDirMissing) {
		t.Fatalf("expected ErrDocsDirMissing, got %v", err)
	}
	if !errors.Is(err, ErrParse) {
		t.Fatal("ErrDocsDirMissing should unwrap to ErrParse")
	}
}

func TestAppendConfigDeclaredDocsDir(t *testing.T) {
	b, _ := testBuild(t)
	if err := os.MkdirAll(filepath.Join(b.CheckoutPath, "sources"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\ndocs_dir: sources\n")

	if err := New(b).AppendConfig(context.Background()); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := os.Stat(filepath.Join(b.CheckoutPath, "sources", DataFileName)); err != nil {
		t.Fatalf("data file not in declared docs dir: %v", err)
	}
}

func TestAppendConfigNullAssetsAllowed(t *testing.T) {
	b, _ := testBuild(t)
	writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\ndocs_dir: null\nextra_css: null\nextra_javascript:\n")

	if err := New(b).AppendConfig(context.Background()); err != nil {
		t.Fatalf("null values should be treated as absent: %v", err)
	}
}

func TestAppendConfigInjectsAssets(t *testing.T) {
	b, env := testBuild(t)
	path := writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\nsite_url: https://pip.example.com\n")

	if err := New(b).AppendConfig(context.Background()); err != nil {
		t.Fatalf("append: %v", err)
	}

	cfg := readBack(t, path)

	css := asStrings(t, cfg["extra_css"])
	wantCSS := []string{
		"/_/static/css/badge_only.css",
		"/_/static/css/docsforge-doc-embed.css",
	}
	if len(css) != len(wantCSS) {
		t.Fatalf("extra_css: got %v", css)
	}
	for i := range wantCSS {
		if css[i] != wantCSS[i] {
			t.Fatalf("extra_css[%d]: got %q, want %q", i, css[i], wantCSS[i])
		}
	}

	js := asStrings(t, cfg["extra_javascript"])
	wantJS := []string{
		DataFileName,
		"/_/static/core/js/docsforge-doc-embed.js",
		"/_/static/javascript/docsforge-analytics.js",
	}
	if len(js) != len(wantJS) {
		t.Fatalf("extra_javascript: got %v", js)
	}
	for i := range wantJS {
		if js[i] != wantJS[i] {
			t.Fatalf("extra_javascript[%d]: got %q, want %q", i, js[i], wantJS[i])
		}
	}

	// Unknown user keys survive the rewrite.
	if cfg["site_url"] != "https://pip.example.com" {
		t.Fatalf("site_url lost: %v", cfg["site_url"])
	}

	if !env.Ran("cat", "mkdocs.yml") {
		t.Fatalf("expected cat of mkdocs.yml, got %v", env.Commands())
	}
}

func TestAppendConfigMergesUserAssets(t *testing.T) {
	b, _ := testBuild(t)
	path := writeMkDocsYML(t, b.CheckoutPath, `site_name: Pip
extra_css:
  - custom.css
extra_javascript:
  - /_/static/core/js/docsforge-doc-embed.js
  - custom.js
`)

	if err := New(b).AppendConfig(context.Background()); err != nil {
		t.Fatalf("append: %v", err)
	}

	cfg := readBack(t, path)
	css := asStrings(t, cfg["extra_css"])
	if css[0] != "custom.css" {
		t.Fatalf("user css must keep its position: %v", css)
	}
	if css[len(css)-1] != "/_/static/css/docsforge-doc-embed.css" {
		t.Fatalf("platform css should be appended: %v", css)
	}

	js := asStrings(t, cfg["extra_javascript"])
	want := []string{
		"/_/static/core/js/docsforge-doc-embed.js",
		"custom.js",
		DataFileName,
		"/_/static/javascript/docsforge-analytics.js",
	}
	if len(js) != len(want) {
		t.Fatalf("extra_javascript: got %v", js)
	}
	for i := range want {
		if js[i] != want[i] {
			t.Fatalf("extra_javascript[%d]: got %q, want %q", i, js[i], want[i])
		}
	}
}

func TestAppendConfigNullsGoogleAnalytics(t *testing.T) {
	b, _ := testBuild(t)
	path := writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\ngoogle_analytics:\n  - UA-12345\n  - pip.example.com\n")

	if err := New(b).AppendConfig(context.Background()); err != nil {
		t.Fatalf("append: %v", err)
	}

	cfg := readBack(t, path)
	if v, ok := cfg["google_analytics"]; !ok || v != nil {
		t.Fatalf("google_analytics should be null, got %v", v)
	}
}

func TestAppendConfigThemeForcing(t *testing.T) {
	t.Run("no feature leaves theme alone", func(t *testing.T) {
		b, _ := testBuild(t)
		path := writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\n")
		if err := New(b).AppendConfig(context.Background()); err != nil {
			t.Fatalf("append: %v", err)
		}
		if _, ok := readBack(t, path)["theme"]; ok {
			t.Fatal("theme should not be set without the feature flag")
		}
	})

	t.Run("feature forces platform theme", func(t *testing.T) {
		b, _ := testBuild(t)
		b.Project.Features = []project.Feature{project.FeatureForceDefaultMkDocsTheme}
		path := writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\n")
		if err := New(b).AppendConfig(context.Background()); err != nil {
			t.Fatalf("append: %v", err)
		}
		if got := readBack(t, path)["theme"]; got != PlatformTheme {
			t.Fatalf("theme: got %v, want %q", got, PlatformTheme)
		}
	})

	t.Run("user theme wins over feature", func(t *testing.T) {
		b, _ := testBuild(t)
		b.Project.Features = []project.Feature{project.FeatureForceDefaultMkDocsTheme}
		path := writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\ntheme: material\n")
		if err := New(b).AppendConfig(context.Background()); err != nil {
			t.Fatalf("append: %v", err)
		}
		if got := readBack(t, path)["theme"]; got != "material" {
			t.Fatalf("user theme overridden: %v", got)
		}
	})

	t.Run("user theme_dir wins over feature", func(t *testing.T) {
		b, _ := testBuild(t)
		b.Project.Features = []project.Feature{project.FeatureForceDefaultMkDocsTheme}
		path := writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\ntheme_dir: themes/custom\n")
		if err := New(b).AppendConfig(context.Background()); err != nil {
			t.Fatalf("append: %v", err)
		}
		if _, ok := readBack(t, path)["theme"]; ok {
			t.Fatal("theme should not be set when theme_dir is declared")
		}
	})
}

func TestAppendConfigLegacyMediaURLs(t *testing.T) {
	b, _ := testBuild(t)
	b.Project.Features = []project.Feature{project.FeatureLegacyMkDocs}
	path := writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\n")

	if err := New(b).AppendConfig(context.Background()); err != nil {
		t.Fatalf("append: %v", err)
	}

	css := asStrings(t, readBack(t, path)["extra_css"])
	if css[0] != "https://media.example.com/css/badge_only.css" {
		t.Fatalf("legacy projects should get absolute asset URLs: %v", css)
	}
}

func TestAppendConfigWritesDataFile(t *testing.T) {
	b, _ := testBuild(t)
	b.Project.AnalyticsCode = "UA-12345"
	writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\ntheme: material\n")

	if err := New(b).AppendConfig(context.Background()); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(b.CheckoutPath, "docs", DataFileName))
	if err != nil {
		t.Fatalf("data file not written: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "var DOCSFORGE_DATA = {") {
		t.Fatalf("unexpected data file prefix: %s", content)
	}
	for _, want := range []string{
		`"project":"pip"`,
		`"version":"latest"`,
		`"theme":"material"`,
		`"docroot":"/docs/"`,
		`"source_suffix":".md"`,
		`"user_analytics_code":"UA-12345"`,
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("data file missing %q:\n%s", want, content)
		}
	}
}

func TestThemeName(t *testing.T) {
	cases := []struct {
		name string
		cfg  map[string]any
		want string
	}{
		{"absent", map[string]any{}, "mkdocs"},
		{"string", map[string]any{"theme": "material"}, "material"},
		{"mapping with name", map[string]any{"theme": map[string]any{"name": "material"}}, "material"},
		{"mapping without name", map[string]any{"theme": map[string]any{"custom_dir": "x"}}, "mkdocs"},
		{"null theme", map[string]any{"theme": nil}, "mkdocs"},
		{"theme_dir", map[string]any{"theme_dir": "themes/custom"}, "custom"},
		{"theme_dir trailing slash", map[string]any{"theme_dir": "themes/custom/"}, "custom"},
		{"string beats theme_dir", map[string]any{"theme": "material", "theme_dir": "themes/custom"}, "material"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ThemeName(tc.cfg); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestConfigFilePinned(t *testing.T) {
	b, _ := testBuild(t)
	if err := os.MkdirAll(filepath.Join(b.CheckoutPath, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := filepath.Join(b.CheckoutPath, "sub", "mkdocs.yml")
	if err := os.WriteFile(want, []byte("site_name: Pip\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	writeMkDocsYML(t, b.CheckoutPath, "site_name: Other\n")
	b.Config = &config.ProjectConfig{
		MkDocs: &config.MkDocsConfig{Configuration: "sub/mkdocs.yml"},
	}

	got, err := New(b).ConfigFile()
	if err != nil {
		t.Fatalf("config file: %v", err)
	}
	if got != want {
		t.Fatalf("pinned file not used: got %s", got)
	}
}

func TestConfigFileNotFound(t *testing.T) {
	b, _ := testBuild(t)
	if _, err := New(b).ConfigFile(); !errors.Is(err, builder.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestRunCommand(t *testing.T) {
	b, env := testBuild(t)
	file := writeMkDocsYML(t, b.CheckoutPath, "site_name: Pip\n")
	b.PythonBinPath = "/envs/pip/bin"
	b.Config = &config.ProjectConfig{
		MkDocs: &config.MkDocsConfig{FailOnWarning: true},
	}

	if err := New(b).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	cmds := env.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected one command, got %d", len(cmds))
	}
	argv := strings.Join(cmds[0].Argv, " ")
	if !strings.HasPrefix(argv, "python -m mkdocs build --clean") {
		t.Fatalf("unexpected argv: %s", argv)
	}
	if !strings.Contains(argv, "--config-file "+file) {
		t.Fatalf("config file not passed: %s", argv)
	}
	if !strings.Contains(argv, "--strict") {
		t.Fatalf("--strict missing: %s", argv)
	}
}
