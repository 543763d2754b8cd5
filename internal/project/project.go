// Package project holds the project/version model and its persistence.
// It is intentionally a thin database/sql layer, not an ORM: the build
// subsystem only needs lookups and a handful of state transitions.
package project

import "time"

// Doctype values supported by the builder loader.
const (
	DoctypeSphinx           = "sphinx"
	DoctypeSphinxHTMLDir    = "sphinx_htmldir"
	DoctypeSphinxSingleHTML = "sphinx_singlehtml"
	DoctypeMkDocs           = "mkdocs"
)

// Project is a documentation project hosted on the platform.
type Project struct {
	ID             int64
	Slug           string
	Name           string
	Doctype        string
	Language       string
	RepoURL        string
	DefaultBranch  string
	DefaultVersion string
	SingleVersion  bool
	AnalyticsCode  string
	Features       []Feature
	CreatedAt      time.Time
}

// HasFeature reports whether the project carries the given feature flag.
func (p *Project) HasFeature(f Feature) bool {
	for _, have := range p.Features {
		if have == f {
			return true
		}
	}
	return false
}

// FeatureValue picks between two values based on a feature flag. Mirrors the
// positive/negative selection used when composing install requirement sets.
func FeatureValue[T any](p *Project, f Feature, positive, negative T) T {
	if p.HasFeature(f) {
		return positive
	}
	return negative
}

// Version is a buildable version of a project (branch, tag or external ref).
type Version struct {
	ID         int64
	ProjectID  int64
	Slug       string
	Identifier string // Git ref the version points at
	Active     bool
	Built      bool
	Hidden     bool
}

// Build records one build attempt of a project version.
type Build struct {
	ID        string // uuid
	ProjectID int64
	VersionID int64
	State     string // triggered, building, finished, failed
	Outcome   string // success, failure, canceled
	StartedAt time.Time
	EndedAt   time.Time
}
