// Package search builds the per-version search index from build output.
// HTML pages are the primary source; markdown sources fill in pages the
// generator emitted without indexable markup.
package search

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docsforge/internal/logfields"
)

// IndexFileName is written into the root of the built site.
const IndexFileName = "docsforge-search.json"

// Section is one addressable fragment of a page.
type Section struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Page is one indexed document.
type Page struct {
	// Path is the page location relative to the site root, slash-separated.
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Index is the serialized search payload served next to the site.
type Index struct {
	Project string `json:"project"`
	Version string `json:"version"`
	Pages   []Page `json:"pages"`
}

// BuildIndex walks a built site and indexes every HTML page, then falls back
// to markdown sources for pages the generator left unrendered. Pages that
// fail to parse are skipped with a log line; a broken page should not sink
// the whole build.
func BuildIndex(siteDir, projectSlug, versionSlug string) (*Index, error) {
	idx := &Index{Project: projectSlug, Version: versionSlug, Pages: []Page{}}

	rendered := map[string]bool{}
	var sources []string

	err := filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(siteDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case strings.HasSuffix(d.Name(), ".html"):
			rendered[rel] = true
			page, err := extractHTMLPage(path, rel)
			if err != nil {
				slog.Warn("Skipping unparseable page", logfields.Path(path), logfields.Error(err))
				return nil
			}
			idx.Pages = append(idx.Pages, *page)
		case strings.HasSuffix(d.Name(), ".md"):
			sources = append(sources, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk site dir: %w", err)
	}

	// Markdown left in the site without a rendered counterpart, for example
	// pages excluded from navigation, still gets indexed from source.
	for _, rel := range sources {
		if hasRendered(rendered, rel) {
			continue
		}
		page, err := ExtractMarkdownPage(filepath.Join(siteDir, filepath.FromSlash(rel)), rel)
		if err != nil {
			slog.Warn("Skipping unreadable source", logfields.Path(rel), logfields.Error(err))
			continue
		}
		idx.Pages = append(idx.Pages, *page)
	}
	return idx, nil
}

// hasRendered reports whether a markdown source has an HTML counterpart,
// either alongside it or as a directory-style index page.
func hasRendered(rendered map[string]bool, rel string) bool {
	base := strings.TrimSuffix(rel, ".md")
	return rendered[base+".html"] || rendered[base+"/index.html"]
}

// Write serializes the index into the site root so it ships with the
// artifacts.
func (idx *Index) Write(siteDir string) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal search index: %w", err)
	}
	path := filepath.Join(siteDir, IndexFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write search index: %w", err)
	}
	slog.Debug("Wrote search index", logfields.Path(path))
	return nil
}
