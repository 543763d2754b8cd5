// Package mkdocs adapts the MkDocs documentation generator. Unlike sphinx,
// where platform settings are appended as code, mkdocs.yml is parsed,
// modified in place and written back, so the user's YAML has to be validated
// before the platform touches it.
package mkdocs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docsforge/internal/builder"
	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/project"
)

// DefaultTheme is what mkdocs itself falls back to when a project declares
// no theme at all.
const DefaultTheme = "mkdocs"

// PlatformTheme is forced onto projects carrying the force-default-theme
// feature, and only when the project declares no theme of its own.
const PlatformTheme = "docsforge"

// DataFileName is the javascript file carrying per-build metadata. It is
// written into the docs dir and registered in extra_javascript ahead of the
// embed scripts.
const DataFileName = "docsforge-data.js"

func init() {
	builder.Register(project.DoctypeMkDocs, func(b *builder.Build) builder.Builder {
		return New(b)
	})
}

// Builder drives mkdocs build.
type Builder struct {
	build *builder.Build

	configFile string // resolved mkdocs.yml path, cached
}

func New(b *builder.Build) *Builder {
	return &Builder{build: b}
}

// Doctype implements builder.Builder.
func (m *Builder) Doctype() string { return project.DoctypeMkDocs }

// ConfigFile resolves the project's mkdocs.yml. A path pinned in the build
// config wins; otherwise the checkout is searched.
func (m *Builder) ConfigFile() (string, error) {
	if m.configFile != "" {
		return m.configFile, nil
	}

	if cfg := m.build.Config; cfg != nil && cfg.MkDocs != nil && cfg.MkDocs.Configuration != "" {
		path := filepath.Join(m.build.CheckoutPath, cfg.MkDocs.Configuration)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("configured mkdocs file %q: %w", cfg.MkDocs.Configuration, builder.ErrConfigNotFound)
		}
		m.configFile = path
		return path, nil
	}

	path, err := builder.FindConfigFile(m.build.CheckoutPath, "mkdocs.yml")
	if err != nil {
		return "", err
	}
	m.configFile = path
	return path, nil
}

// loadConfig parses mkdocs.yml into a generic mapping. Unknown keys are kept
// as-is so writing the config back never loses user settings.
func (m *Builder) loadConfig() (map[string]any, error) {
	file, err := m.ConfigFile()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read mkdocs.yml: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc == nil {
		return nil, ErrEmptyConfig
	}
	cfg, ok := doc.(map[string]any)
	if !ok {
		return nil, ErrNotMapping
	}
	return cfg, nil
}

// docsDir returns the docs_dir setting, validated, relative to the directory
// holding mkdocs.yml. A missing or null docs_dir means the mkdocs default.
func docsDir(cfg map[string]any) (string, error) {
	raw, ok := cfg["docs_dir"]
	if !ok || raw == nil {
		return "docs", nil
	}
	dir, ok := raw.(string)
	if !ok {
		return "", &InvalidTypeError{Key: "docs_dir", Want: "a string"}
	}
	return dir, nil
}

// extraAssets returns a validated extra_css or extra_javascript list. Null
// and a missing key both mean an empty list.
func extraAssets(cfg map[string]any, key string) ([]any, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &InvalidTypeError{Key: key, Want: "a list"}
	}
	return list, nil
}

// ThemeName normalizes the theme setting of a parsed mkdocs.yml. The setting
// can be a plain string, a mapping with a name key, absent with a theme_dir
// pointing at a custom theme, or absent entirely.
func ThemeName(cfg map[string]any) string {
	switch theme := cfg["theme"].(type) {
	case map[string]any:
		if name, ok := theme["name"].(string); ok && name != "" {
			return name
		}
		return DefaultTheme
	case string:
		if theme != "" {
			return theme
		}
	}
	if dir, ok := cfg["theme_dir"].(string); ok && dir != "" {
		return filepath.Base(strings.TrimRight(dir, "/"))
	}
	return DefaultTheme
}

// hasUserTheme reports whether the project declares any theme of its own.
// The platform never overrides an explicit choice.
func hasUserTheme(cfg map[string]any) bool {
	if _, ok := cfg["theme"]; ok {
		return true
	}
	_, ok := cfg["theme_dir"]
	return ok
}

// assetURL prefixes a platform asset path. Projects on the legacy pipeline
// load assets from the absolute media host instead of the proxied prefix.
func (m *Builder) assetURL(path string) string {
	if m.build.Project.HasFeature(project.FeatureLegacyMkDocs) && m.build.Media.MediaURL != "" {
		return strings.TrimRight(m.build.Media.MediaURL, "/") + path
	}
	return m.build.Media.StaticPrefix + path
}

// mergeAssets keeps the user's entries in their original order and appends
// the platform entries they do not already list.
func mergeAssets(user []any, platform []any) []any {
	merged := append([]any{}, user...)
	for _, item := range platform {
		if !containsValue(merged, item) {
			merged = append(merged, item)
		}
	}
	return merged
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

// AppendConfig implements builder.Builder. It rewrites mkdocs.yml with the
// platform's assets injected, writes the per-build data file into the docs
// dir and echoes the final config into the build log.
func (m *Builder) AppendConfig(ctx context.Context) error {
	cfg, err := m.loadConfig()
	if err != nil {
		return err
	}
	file, err := m.ConfigFile()
	if err != nil {
		return err
	}

	dir, err := docsDir(cfg)
	if err != nil {
		return err
	}
	// An explicitly declared docs_dir has to exist; the implicit default is
	// created when the data file is written.
	if raw, ok := cfg["docs_dir"]; ok && raw != nil {
		if info, err := os.Stat(filepath.Join(filepath.Dir(file), dir)); err != nil || !info.IsDir() {
			return ErrDocsDirMissing
		}
	}
	userCSS, err := extraAssets(cfg, "extra_css")
	if err != nil {
		return err
	}
	userJS, err := extraAssets(cfg, "extra_javascript")
	if err != nil {
		return err
	}

	cfg["extra_css"] = mergeAssets(userCSS, []any{
		m.assetURL("/css/badge_only.css"),
		m.assetURL("/css/docsforge-doc-embed.css"),
	})
	cfg["extra_javascript"] = mergeAssets(userJS, []any{
		DataFileName,
		m.assetURL("/core/js/docsforge-doc-embed.js"),
		m.assetURL("/javascript/docsforge-analytics.js"),
	})

	// The platform injects analytics through its own script. Leaving the
	// user's tracker in place would double-count every page view.
	cfg["google_analytics"] = nil

	if !hasUserTheme(cfg) && m.build.Project.HasFeature(project.FeatureForceDefaultMkDocsTheme) {
		cfg["theme"] = PlatformTheme
	}

	if err := m.writeDataFile(cfg, filepath.Dir(file), dir); err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal mkdocs.yml: %w", err)
	}
	if err := os.WriteFile(file, out, 0o644); err != nil {
		return fmt.Errorf("write mkdocs.yml: %w", err)
	}

	slog.Debug("Rewrote mkdocs configuration",
		logfields.Project(m.build.Project.Slug), logfields.Path(file))

	rel, _ := filepath.Rel(m.build.CheckoutPath, file)
	_, err = m.build.Env.Run(ctx, buildenv.Command{
		Argv: []string{"cat", rel},
		Cwd:  m.build.CheckoutPath,
	})
	return err
}

// buildData is the payload of the data file. The embed and analytics scripts
// read it at page load.
type buildData struct {
	Project          string `json:"project"`
	Version          string `json:"version"`
	Language         string `json:"language"`
	Theme            string `json:"theme"`
	Builder          string `json:"builder"`
	Docroot          string `json:"docroot"`
	SourceSuffix     string `json:"source_suffix"`
	ProductionDomain string `json:"production_domain"`
	AnalyticsCode    string `json:"user_analytics_code"`
}

func (m *Builder) writeDataFile(cfg map[string]any, configDir, docsDirName string) error {
	lang := m.build.Project.Language
	if lang == "" {
		lang = "en"
	}
	docroot := "/"
	if rel, err := filepath.Rel(m.build.CheckoutPath, filepath.Join(configDir, docsDirName)); err == nil && rel != "." {
		docroot = "/" + filepath.ToSlash(rel) + "/"
	}

	payload, err := json.Marshal(buildData{
		Project:          m.build.Project.Slug,
		Version:          m.build.Version.Slug,
		Language:         lang,
		Theme:            ThemeName(cfg),
		Builder:          "mkdocs",
		Docroot:          docroot,
		SourceSuffix:     ".md",
		ProductionDomain: m.build.Media.ProductionDomain,
		AnalyticsCode:    m.build.Project.AnalyticsCode,
	})
	if err != nil {
		return fmt.Errorf("marshal build data: %w", err)
	}

	docsPath := filepath.Join(configDir, docsDirName)
	if err := os.MkdirAll(docsPath, 0o755); err != nil {
		return fmt.Errorf("create docs dir: %w", err)
	}
	content := fmt.Sprintf("var DOCSFORGE_DATA = %s;\n", payload)
	if err := os.WriteFile(filepath.Join(docsPath, DataFileName), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", DataFileName, err)
	}
	return nil
}

// DocsDir implements builder.Builder.
func (m *Builder) DocsDir() string {
	cfg, err := m.loadConfig()
	if err != nil {
		return builder.FindDocsDir(m.build.CheckoutPath)
	}
	dir, err := docsDir(cfg)
	if err != nil {
		return builder.FindDocsDir(m.build.CheckoutPath)
	}
	file, _ := m.ConfigFile()
	return filepath.Join(filepath.Dir(file), dir)
}

// Run implements builder.Builder.
func (m *Builder) Run(ctx context.Context) error {
	file, err := m.ConfigFile()
	if err != nil {
		return err
	}

	argv := []string{
		"python", "-m", "mkdocs", "build",
		"--clean",
		"--site-dir", m.build.OutputPath,
		"--config-file", file,
	}
	if cfg := m.build.Config; cfg != nil && cfg.MkDocs != nil && cfg.MkDocs.FailOnWarning {
		argv = append(argv, "--strict")
	}

	_, err = m.build.Env.Run(ctx, buildenv.Command{
		Argv:    argv,
		Cwd:     m.build.CheckoutPath,
		BinPath: m.build.PythonBinPath,
	})
	return err
}
