// Package storage provides content-addressable archival for build artifacts.
// Published sites are synced to app servers; the archive keeps deduplicated
// copies of artifacts so past builds can be inspected or restored.
package storage

import (
	"context"
	"time"
)

// ArtifactStore is content-addressable storage keyed by SHA256.
type ArtifactStore interface {
	// Put stores an object and returns its content hash. Storing the same
	// content twice bumps the reference count instead of rewriting.
	Put(ctx context.Context, obj *Object) (hash string, err error)

	// Get retrieves an object by content hash.
	Get(ctx context.Context, hash string) (*Object, error)

	// Exists reports whether an object with the given hash is stored.
	Exists(ctx context.Context, hash string) (bool, error)

	// Delete removes an object by content hash.
	Delete(ctx context.Context, hash string) error

	// AddBuildRef records which object hashes a build produced.
	AddBuildRef(ctx context.Context, buildID string, hashes []string) error

	// BuildRef returns the object hashes recorded for a build.
	BuildRef(ctx context.Context, buildID string) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// ObjectType identifies the kind of archived object.
type ObjectType string

const (
	// ObjectTypeSiteFile is one file of a built documentation site.
	ObjectTypeSiteFile ObjectType = "site_file"

	// ObjectTypeSearchIndex is the serialized search index of a build.
	ObjectTypeSearchIndex ObjectType = "search_index"

	// ObjectTypeBuildManifest maps a build to the site files it produced.
	ObjectTypeBuildManifest ObjectType = "build_manifest"
)

// Object is one archived artifact.
type Object struct {
	Hash     string
	Type     ObjectType
	Size     int64
	Data     []byte
	Metadata Metadata
}

// Metadata is the sidecar information kept per object.
type Metadata struct {
	CreatedAt time.Time         `json:"created_at"`
	RefCount  int               `json:"ref_count"`
	Custom    map[string]string `json:"custom,omitempty"`
}

// ErrNotFound is returned when no object exists for a hash.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Hash
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
