package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a project or version does not exist.
var ErrNotFound = errors.New("not found")

// Store persists projects, versions, feature flags and build records in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (and initializes) the project database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		doctype TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		repo_url TEXT NOT NULL DEFAULT '',
		default_branch TEXT NOT NULL DEFAULT '',
		default_version TEXT NOT NULL DEFAULT 'latest',
		single_version INTEGER NOT NULL DEFAULT 0,
		analytics_code TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id),
		slug TEXT NOT NULL,
		identifier TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		built INTEGER NOT NULL DEFAULT 0,
		hidden INTEGER NOT NULL DEFAULT 0,
		UNIQUE(project_id, slug)
	);
	CREATE TABLE IF NOT EXISTS project_features (
		project_id INTEGER NOT NULL REFERENCES projects(id),
		feature TEXT NOT NULL,
		UNIQUE(project_id, feature)
	);
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		project_id INTEGER NOT NULL REFERENCES projects(id),
		version_id INTEGER NOT NULL REFERENCES versions(id),
		state TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_versions_project ON versions(project_id);
	CREATE INDEX IF NOT EXISTS idx_builds_version ON builds(version_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateProject inserts a project. The slug is derived from the name when empty.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.Doctype == "" {
		p.Doctype = DoctypeSphinx
	}
	if p.Language == "" {
		p.Language = "en"
	}
	if p.DefaultVersion == "" {
		p.DefaultVersion = "latest"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (slug, name, doctype, language, repo_url, default_branch,
			default_version, single_version, analytics_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Slug, p.Name, p.Doctype, p.Language, p.RepoURL, p.DefaultBranch,
		p.DefaultVersion, boolInt(p.SingleVersion), p.AnalyticsCode, p.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("project id: %w", err)
	}

	for _, f := range p.Features {
		if err := s.addFeatureLocked(ctx, p.ID, f); err != nil {
			return err
		}
	}
	return nil
}

// GetProject loads a project (including feature flags) by slug.
func (s *Store) GetProject(ctx context.Context, slug string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, doctype, language, repo_url, default_branch,
			default_version, single_version, analytics_code, created_at
		FROM projects WHERE slug = ?`, slug)

	var p Project
	var single int
	var created int64
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Doctype, &p.Language, &p.RepoURL,
		&p.DefaultBranch, &p.DefaultVersion, &single, &p.AnalyticsCode, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	p.SingleVersion = single != 0
	p.CreatedAt = time.Unix(created, 0)

	rows, err := s.db.QueryContext(ctx, `SELECT feature FROM project_features WHERE project_id = ?`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		p.Features = append(p.Features, Feature(f))
	}
	return &p, rows.Err()
}

// ListProjects returns all projects ordered by slug. Feature flags are not
// loaded; use GetProject when they matter.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, name, doctype, language, repo_url, default_branch,
			default_version, single_version, analytics_code, created_at
		FROM projects ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		var p Project
		var single int
		var created int64
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Doctype, &p.Language, &p.RepoURL,
			&p.DefaultBranch, &p.DefaultVersion, &single, &p.AnalyticsCode, &created); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.SingleVersion = single != 0
		p.CreatedAt = time.Unix(created, 0)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// AddFeature enables a feature flag for a project. Adding twice is a no-op.
func (s *Store) AddFeature(ctx context.Context, projectID int64, f Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addFeatureLocked(ctx, projectID, f)
}

func (s *Store) addFeatureLocked(ctx context.Context, projectID int64, f Feature) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_features (project_id, feature) VALUES (?, ?)`,
		projectID, string(f))
	if err != nil {
		return fmt.Errorf("add feature: %w", err)
	}
	return nil
}

// UpsertVersion creates or updates a version by (project, slug).
func (s *Store) UpsertVersion(ctx context.Context, v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO versions (project_id, slug, identifier, active, built, hidden)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, slug) DO UPDATE SET
			identifier = excluded.identifier,
			active = excluded.active,
			built = excluded.built,
			hidden = excluded.hidden`,
		v.ProjectID, v.Slug, v.Identifier, boolInt(v.Active), boolInt(v.Built), boolInt(v.Hidden))
	if err != nil {
		return fmt.Errorf("upsert version: %w", err)
	}
	if v.ID == 0 {
		if id, err := res.LastInsertId(); err == nil {
			v.ID = id
		}
	}
	return nil
}

// GetVersion loads a single version by project and slug.
func (s *Store) GetVersion(ctx context.Context, projectID int64, slug string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, slug, identifier, active, built, hidden
		FROM versions WHERE project_id = ? AND slug = ?`, projectID, slug)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %q: %w", slug, ErrNotFound)
	}
	return v, err
}

// ListVersions returns versions for a project, ordered by slug.
// With publicOnly set, only active, built, non-hidden versions are returned
// (the set shown in the version flyout).
func (s *Store) ListVersions(ctx context.Context, projectID int64, publicOnly bool) ([]*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, project_id, slug, identifier, active, built, hidden
		FROM versions WHERE project_id = ?`
	if publicOnly {
		query += ` AND active = 1 AND built = 1 AND hidden = 0`
	}
	query += ` ORDER BY slug`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MarkVersionBuilt flips the built flag after a successful build.
func (s *Store) MarkVersionBuilt(ctx context.Context, versionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE versions SET built = 1 WHERE id = ?`, versionID)
	if err != nil {
		return fmt.Errorf("mark built: %w", err)
	}
	return nil
}

// RecordBuild inserts or updates a build record.
func (s *Store) RecordBuild(ctx context.Context, b *Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (id, project_id, version_id, state, outcome, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			outcome = excluded.outcome,
			ended_at = excluded.ended_at`,
		b.ID, b.ProjectID, b.VersionID, b.State, b.Outcome,
		b.StartedAt.Unix(), endedUnix(b.EndedAt))
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	return nil
}

// LastBuild returns the most recent build for a version, or ErrNotFound.
func (s *Store) LastBuild(ctx context.Context, versionID int64) (*Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, version_id, state, outcome, started_at, ended_at
		FROM builds WHERE version_id = ? ORDER BY started_at DESC LIMIT 1`, versionID)

	var b Build
	var started, ended int64
	err := row.Scan(&b.ID, &b.ProjectID, &b.VersionID, &b.State, &b.Outcome, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load build: %w", err)
	}
	b.StartedAt = time.Unix(started, 0)
	if ended > 0 {
		b.EndedAt = time.Unix(ended, 0)
	}
	return &b, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanVersion(s scanner) (*Version, error) {
	var v Version
	var active, built, hidden int
	if err := s.Scan(&v.ID, &v.ProjectID, &v.Slug, &v.Identifier, &active, &built, &hidden); err != nil {
		return nil, err
	}
	v.Active = active != 0
	v.Built = built != 0
	v.Hidden = hidden != 0
	return &v, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func endedUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
