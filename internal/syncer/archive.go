package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/storage"
)

// Archiver stores a content-addressed copy of every published build. The
// archive deduplicates across builds, so an unchanged page costs nothing.
type Archiver struct {
	store storage.ArtifactStore
}

func NewArchiver(store storage.ArtifactStore) *Archiver {
	return &Archiver{store: store}
}

// manifest maps site-relative paths to object hashes for one build.
type manifest struct {
	BuildID string            `json:"build_id"`
	Files   map[string]string `json:"files"`
}

// ArchiveBuild stores every file of a built site plus a manifest, and records
// the build ref. Returns the manifest object's hash.
func (a *Archiver) ArchiveBuild(ctx context.Context, buildID, siteDir string) (string, error) {
	m := manifest{BuildID: buildID, Files: map[string]string{}}
	var hashes []string

	err := filepath.WalkDir(siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(siteDir, path)
		if err != nil {
			return err
		}
		hash, err := a.store.Put(ctx, &storage.Object{
			Type: storage.ObjectTypeSiteFile,
			Data: data,
		})
		if err != nil {
			return fmt.Errorf("archive %s: %w", rel, err)
		}
		m.Files[filepath.ToSlash(rel)] = hash
		hashes = append(hashes, hash)
		return nil
	})
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	manifestHash, err := a.store.Put(ctx, &storage.Object{
		Type: storage.ObjectTypeBuildManifest,
		Data: payload,
	})
	if err != nil {
		return "", fmt.Errorf("archive manifest: %w", err)
	}
	hashes = append(hashes, manifestHash)

	if err := a.store.AddBuildRef(ctx, buildID, hashes); err != nil {
		return "", err
	}

	slog.Info("Archived build artifacts",
		logfields.BuildID(buildID), logfields.Path(siteDir))
	return manifestHash, nil
}
