package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FSStore keeps objects on the local filesystem:
//
//	<base>/
//	  objects/ab/cdef...        object content, sharded on the first 2 hex chars
//	  objects/ab/cdef....meta   metadata sidecar
//	  refs/builds/<build-id>    newline-separated object hashes
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates the archive layout under basePath.
func NewFSStore(basePath string) (*FSStore, error) {
	for _, dir := range []string{
		filepath.Join(basePath, "objects"),
		filepath.Join(basePath, "refs", "builds"),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create archive directory %s: %w", dir, err)
		}
	}
	return &FSStore{basePath: basePath}, nil
}

func (s *FSStore) objectPath(hash string) string {
	return filepath.Join(s.basePath, "objects", hash[:2], hash[2:])
}

func (s *FSStore) metaPath(hash string) string {
	return s.objectPath(hash) + ".meta"
}

// Put implements ArtifactStore.
func (s *FSStore) Put(_ context.Context, obj *Object) (string, error) {
	hash := obj.Hash
	if hash == "" {
		sum := sha256.Sum256(obj.Data)
		hash = hex.EncodeToString(sum[:])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		meta, err := s.readMeta(hash)
		if err != nil {
			return hash, nil
		}
		meta.RefCount++
		return hash, s.writeMeta(hash, meta)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(path, obj.Data, 0o640); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}

	meta := obj.Metadata
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	if meta.RefCount == 0 {
		meta.RefCount = 1
	}
	if meta.Custom == nil {
		meta.Custom = map[string]string{}
	}
	meta.Custom["type"] = string(obj.Type)
	return hash, s.writeMeta(hash, meta)
}

// Get implements ArtifactStore.
func (s *FSStore) Get(_ context.Context, hash string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.objectPath(hash))
	if os.IsNotExist(err) {
		return nil, ErrNotFound{Hash: hash}
	}
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}

	obj := &Object{Hash: hash, Size: int64(len(data)), Data: data}
	if meta, err := s.readMeta(hash); err == nil {
		obj.Metadata = meta
		obj.Type = ObjectType(meta.Custom["type"])
	}
	return obj, nil
}

// Exists implements ArtifactStore.
func (s *FSStore) Exists(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.objectPath(hash))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete implements ArtifactStore.
func (s *FSStore) Delete(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.objectPath(hash)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrNotFound{Hash: hash}
	}
	_ = os.Remove(s.metaPath(hash))
	return os.Remove(path)
}

// AddBuildRef implements ArtifactStore.
func (s *FSStore) AddBuildRef(_ context.Context, buildID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.basePath, "refs", "builds", buildID)
	content := strings.Join(hashes, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		return fmt.Errorf("write build ref: %w", err)
	}
	return nil
}

// BuildRef implements ArtifactStore.
func (s *FSStore) BuildRef(_ context.Context, buildID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.basePath, "refs", "builds", buildID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound{Hash: buildID}
	}
	if err != nil {
		return nil, fmt.Errorf("read build ref: %w", err)
	}

	var hashes []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			hashes = append(hashes, line)
		}
	}
	return hashes, nil
}

// Close implements ArtifactStore.
func (s *FSStore) Close() error { return nil }

func (s *FSStore) readMeta(hash string) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(s.metaPath(hash))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func (s *FSStore) writeMeta(hash string, meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(hash), data, 0o640)
}
