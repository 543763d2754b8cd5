// Package addons assembles the data document the platform's in-page
// javascript client consumes: which versions exist, where downloads live,
// how to query search and what to diff against. Serving the document is the
// hosting layer's job; this package only builds it.
package addons

import (
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/docsforge/internal/project"
	"git.home.luguber.info/inful/docsforge/internal/search"
)

// APIVersion is bumped when the document layout changes incompatibly.
const APIVersion = "1"

// DocumentFileName is where the assembled document lands in the built site.
const DocumentFileName = "docsforge-addons.json"

// ProjectData is the project snapshot embedded in the document.
type ProjectData struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Language string `json:"language"`
	RepoURL  string `json:"repository_url"`
}

// VersionData is one version entry in the flyout.
type VersionData struct {
	Slug      string `json:"slug"`
	URL       string `json:"url"`
	IsCurrent bool   `json:"is_current"`
}

// BuildData is the latest build snapshot for the served version.
type BuildData struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Outcome  string `json:"outcome"`
	Finished string `json:"finished,omitempty"`
}

// Flyout feeds the version/download switcher.
type Flyout struct {
	Versions  []VersionData     `json:"versions"`
	Downloads map[string]string `json:"downloads,omitempty"`
}

// Search points the client at the version's search index.
type Search struct {
	IndexURL string `json:"index_url"`
}

// DocDiff tells the client which version to diff the current page against.
type DocDiff struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url,omitempty"`
}

// Document is the complete addons payload for one served version.
type Document struct {
	APIVersion string      `json:"api_version"`
	Project    ProjectData `json:"project"`
	Version    VersionData `json:"version"`
	Build      *BuildData  `json:"build,omitempty"`
	Flyout     Flyout      `json:"flyout"`
	Search     Search      `json:"search"`
	DocDiff    DocDiff     `json:"doc_diff"`
}

// Assembler builds addons documents from stored project state.
type Assembler struct {
	// ProductionDomain forms the absolute URLs in the document.
	ProductionDomain string
}

// versionURL is the canonical location of a version's docs.
func (a *Assembler) versionURL(p *project.Project, versionSlug string) string {
	if p.SingleVersion {
		return fmt.Sprintf("https://%s/%s/", a.ProductionDomain, p.Slug)
	}
	return fmt.Sprintf("https://%s/%s/%s/%s/", a.ProductionDomain, p.Slug, p.Language, versionSlug)
}

// Assemble builds the document for one project/version. versions should be
// the public (active, built, not hidden) versions; build may be nil when the
// version has never been built.
func (a *Assembler) Assemble(p *project.Project, current *project.Version, versions []*project.Version, build *project.Build) *Document {
	doc := &Document{
		APIVersion: APIVersion,
		Project: ProjectData{
			Slug:     p.Slug,
			Name:     p.Name,
			Language: p.Language,
			RepoURL:  p.RepoURL,
		},
		Version: VersionData{
			Slug:      current.Slug,
			URL:       a.versionURL(p, current.Slug),
			IsCurrent: true,
		},
		Search: Search{
			IndexURL: a.versionURL(p, current.Slug) + search.IndexFileName,
		},
	}

	doc.Flyout.Versions = make([]VersionData, 0, len(versions))
	for _, v := range versions {
		doc.Flyout.Versions = append(doc.Flyout.Versions, VersionData{
			Slug:      v.Slug,
			URL:       a.versionURL(p, v.Slug),
			IsCurrent: v.Slug == current.Slug,
		})
	}

	if build != nil {
		bd := &BuildData{
			ID:      build.ID,
			State:   build.State,
			Outcome: build.Outcome,
		}
		if !build.EndedAt.IsZero() {
			bd.Finished = build.EndedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		doc.Build = bd
	}

	// Diff against the default version, unless we are it.
	if p.DefaultVersion != "" && p.DefaultVersion != current.Slug {
		doc.DocDiff = DocDiff{
			Enabled: true,
			BaseURL: a.versionURL(p, p.DefaultVersion),
		}
	}

	return doc
}

// MarshalDocument serializes a document the way the client expects it.
func MarshalDocument(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal addons document: %w", err)
	}
	return data, nil
}
