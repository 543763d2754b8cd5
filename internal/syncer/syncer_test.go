package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/config"
	"git.home.luguber.info/inful/docsforge/internal/metrics"
	"git.home.luguber.info/inful/docsforge/internal/storage"
)

func writeSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "guide"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, content := range map[string]string{
		"index.html":       "<html>home</html>",
		"guide/setup.html": "<html>setup</html>",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestNewSelectsMode(t *testing.T) {
	env := buildenv.NewRecordingEnvironment()
	s, err := New(config.SyncConfig{Mode: config.SyncModeLocal}, env, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := s.(*Local); !ok {
		t.Fatalf("expected Local, got %T", s)
	}

	s, err = New(config.SyncConfig{Mode: config.SyncModeRemote, AppServers: []string{"app1"}}, env, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := s.(*Remote); !ok {
		t.Fatalf("expected Remote, got %T", s)
	}

	// Pull mode publishes locally; app servers fetch with a Puller.
	s, err = New(config.SyncConfig{Mode: config.SyncModePull}, env, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := s.(*Local); !ok {
		t.Fatalf("expected Local for pull mode, got %T", s)
	}

	if _, err := New(config.SyncConfig{Mode: "carrier-pigeon"}, env, nil); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestLocalSyncReplacesDestination(t *testing.T) {
	src := writeSite(t)
	dest := filepath.Join(t.TempDir(), "serve", "pip", "latest")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dest, "stale.html"), []byte("old"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}

	l := &Local{recorder: metrics.NoopRecorder{}}
	if err := l.Sync(context.Background(), src, dest); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "guide", "setup.html")); err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "stale.html")); !os.IsNotExist(err) {
		t.Fatal("stale file survived the sync")
	}
}

func TestLocalSyncMissingSource(t *testing.T) {
	l := &Local{recorder: metrics.NoopRecorder{}}
	err := l.Sync(context.Background(), filepath.Join(t.TempDir(), "nosuch"), t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestRemoteSyncCommands(t *testing.T) {
	env := buildenv.NewRecordingEnvironment()
	r := &Remote{
		cfg: config.SyncConfig{
			Mode:       config.SyncModeRemote,
			User:       "docs",
			AppServers: []string{"app1", "app2"},
		},
		env:      env,
		recorder: metrics.NoopRecorder{},
	}

	if err := r.Sync(context.Background(), "/builds/pip/latest", "/srv/docs/pip/latest"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	for _, host := range []string{"app1", "app2"} {
		if !env.Ran("ssh", "docs@"+host, "mkdir", "-p", "/srv/docs/pip/latest") {
			t.Fatalf("mkdir not run on %s: %v", host, env.Commands())
		}
		if !env.Ran("rsync", "-av", "--delete", "/builds/pip/latest/", "docs@"+host+":/srv/docs/pip/latest") {
			t.Fatalf("rsync not run on %s: %v", host, env.Commands())
		}
	}
}

func TestRemoteSyncContinuesPastFailedHost(t *testing.T) {
	env := buildenv.NewRecordingEnvironment()
	env.FailOn("ssh docs@app1", errors.New("connection refused"))
	r := &Remote{
		cfg: config.SyncConfig{
			Mode:       config.SyncModeRemote,
			User:       "docs",
			AppServers: []string{"app1", "app2"},
		},
		env:      env,
		recorder: metrics.NoopRecorder{},
	}

	err := r.Sync(context.Background(), "/builds/pip/latest", "/srv/docs/pip/latest")
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if !strings.Contains(err.Error(), "app1") {
		t.Fatalf("failed host not named: %v", err)
	}
	// app2 still got the push.
	if !env.Ran("rsync", "-av", "--delete", "/builds/pip/latest/", "docs@app2:/srv/docs/pip/latest") {
		t.Fatalf("healthy host skipped: %v", env.Commands())
	}
}

func TestPull(t *testing.T) {
	env := buildenv.NewRecordingEnvironment()
	p := NewPuller(config.SyncConfig{Mode: config.SyncModePull, User: "docs"}, env, nil)

	if err := p.Pull(context.Background(), "build1", "/builds/pip/latest", "/srv/docs/pip/latest"); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !env.Ran("rsync", "-av", "docs@build1:/builds/pip/latest/", "/srv/docs/pip/latest") {
		t.Fatalf("pull rsync wrong: %v", env.Commands())
	}
}

func TestArchiveBuild(t *testing.T) {
	site := writeSite(t)
	store, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	manifestHash, err := NewArchiver(store).ArchiveBuild(ctx, "build-42", site)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	obj, err := store.Get(ctx, manifestHash)
	if err != nil {
		t.Fatalf("get manifest: %v", err)
	}
	var m manifest
	if err := json.Unmarshal(obj.Data, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if m.BuildID != "build-42" || len(m.Files) != 2 {
		t.Fatalf("manifest wrong: %+v", m)
	}

	fileHash, ok := m.Files["guide/setup.html"]
	if !ok {
		t.Fatalf("manifest missing page: %+v", m.Files)
	}
	file, err := store.Get(ctx, fileHash)
	if err != nil {
		t.Fatalf("get archived file: %v", err)
	}
	if string(file.Data) != "<html>setup</html>" {
		t.Fatalf("archived content wrong: %q", file.Data)
	}

	refs, err := store.BuildRef(ctx, "build-42")
	if err != nil {
		t.Fatalf("build ref: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs (2 files + manifest), got %v", refs)
	}
}
