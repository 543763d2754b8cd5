// Package checkout prepares the project repository for a build.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	dferrors "git.home.luguber.info/inful/docsforge/internal/errors"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/metrics"
	"git.home.luguber.info/inful/docsforge/internal/project"
)

// Client handles Git operations for project checkouts.
type Client struct {
	recorder metrics.Recorder
}

// NewClient creates a checkout client. recorder may be nil.
func NewClient(recorder metrics.Recorder) *Client {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Client{recorder: recorder}
}

// Checkout makes sure path contains the project repository at the version's
// identifier. An existing checkout is fetched and reset; otherwise a fresh
// clone is made.
func (c *Client) Checkout(ctx context.Context, p *project.Project, v *project.Version, path string) error {
	start := time.Now()
	err := c.checkout(ctx, p, v, path)
	c.recorder.ObserveCheckoutDuration(p.Slug, time.Since(start), err == nil)
	return err
}

func (c *Client) checkout(ctx context.Context, p *project.Project, v *project.Version, path string) error {
	repo, err := git.PlainOpen(path)
	switch {
	case err == nil:
		if err := c.update(ctx, repo, p); err != nil {
			return err
		}
	case err == git.ErrRepositoryNotExists:
		if repo, err = c.clone(ctx, p, path); err != nil {
			return err
		}
	default:
		return dferrors.WorkspaceError("open checkout", err)
	}

	return c.checkoutRef(repo, v)
}

func (c *Client) clone(ctx context.Context, p *project.Project, path string) (*git.Repository, error) {
	slog.Debug("Cloning repository", logfields.Project(p.Slug), logfields.Path(path), slog.String("url", p.RepoURL))

	if err := os.RemoveAll(path); err != nil {
		return nil, dferrors.WorkspaceError("clear checkout", err)
	}

	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{URL: p.RepoURL})
	if err != nil {
		return nil, classifyGitError(p.RepoURL, err)
	}
	slog.Info("Repository cloned", logfields.Project(p.Slug), logfields.Path(path))
	return repo, nil
}

func (c *Client) update(ctx context.Context, repo *git.Repository, p *project.Project) error {
	slog.Debug("Fetching repository", logfields.Project(p.Slug))
	err := repo.FetchContext(ctx, &git.FetchOptions{Force: true, Tags: git.AllTags})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return classifyGitError(p.RepoURL, err)
	}
	return nil
}

// checkoutRef moves the worktree to the version identifier: a branch, tag or
// commit hash, tried in that order.
func (c *Client) checkoutRef(repo *git.Repository, v *project.Version) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}

	ident := v.Identifier
	if ident == "" {
		ident = v.Slug
	}

	candidates := []git.CheckoutOptions{
		{Branch: plumbing.NewRemoteReferenceName("origin", ident), Force: true},
		{Branch: plumbing.NewBranchReferenceName(ident), Force: true},
		{Branch: plumbing.NewTagReferenceName(ident), Force: true},
	}
	if len(ident) >= 7 && isHex(ident) {
		candidates = append(candidates, git.CheckoutOptions{Hash: plumbing.NewHash(ident), Force: true})
	}

	var lastErr error
	for _, opts := range candidates {
		if lastErr = wt.Checkout(&opts); lastErr == nil {
			return nil
		}
	}
	return dferrors.Wrap(lastErr, dferrors.CategoryGit, dferrors.SeverityFatal,
		"version reference not found").WithContext("identifier", ident)
}

// classifyGitError wraps go-git errors, marking transport problems retryable.
func classifyGitError(url string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporarily") {
		return dferrors.GitNetworkError(url, err)
	}
	return dferrors.GitCloneError(url, err)
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
