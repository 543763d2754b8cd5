package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/config"
	errs "git.home.luguber.info/inful/docsforge/internal/errors"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/metrics"
	"git.home.luguber.info/inful/docsforge/internal/retry"
)

// Remote pushes a built site to every app server. One failing host does not
// stop the push to the others; all failures are reported together so the
// caller can retry the publish.
type Remote struct {
	cfg      config.SyncConfig
	env      buildenv.Environment
	recorder metrics.Recorder
	policy   retry.Policy
}

// Sync implements Syncer. Each host gets a few backed-off attempts before it
// counts as failed.
func (r *Remote) Sync(ctx context.Context, src, dest string) error {
	var failures []error
	for _, host := range r.cfg.AppServers {
		err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
			if err := r.syncHost(ctx, host, src, dest); err != nil {
				return errs.SyncError(host, err)
			}
			return nil
		})
		r.recorder.IncSyncResult(host, err == nil)
		if err != nil {
			slog.Warn("Push to app server failed",
				logfields.Target(host), logfields.Error(err))
			failures = append(failures, err)
			continue
		}
		slog.Info("Pushed build to app server",
			logfields.Target(host), logfields.Path(dest))
	}
	return errors.Join(failures...)
}

func (r *Remote) syncHost(ctx context.Context, host, src, dest string) error {
	login := host
	if r.cfg.User != "" {
		login = r.cfg.User + "@" + host
	}

	if _, err := r.env.Run(ctx, buildenv.Command{
		Argv: []string{"ssh", login, "mkdir", "-p", dest},
	}); err != nil {
		return fmt.Errorf("create remote directory: %w", err)
	}

	if _, err := r.env.Run(ctx, buildenv.Command{
		Argv: []string{
			"rsync", "-av", "--delete",
			strings.TrimRight(src, "/") + "/",
			login + ":" + dest,
		},
	}); err != nil {
		return fmt.Errorf("rsync: %w", err)
	}
	return nil
}

// Puller fetches a published build from a remote host, the inverse of Remote.
// App servers run it when they missed a push.
type Puller struct {
	cfg      config.SyncConfig
	env      buildenv.Environment
	recorder metrics.Recorder
}

// NewPuller creates a puller for the configured sync user and servers.
func NewPuller(cfg config.SyncConfig, env buildenv.Environment, recorder metrics.Recorder) *Puller {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Puller{cfg: cfg, env: env, recorder: recorder}
}

// Pull copies src on host into the local dest.
func (p *Puller) Pull(ctx context.Context, host, src, dest string) error {
	login := host
	if p.cfg.User != "" {
		login = p.cfg.User + "@" + host
	}

	_, err := p.env.Run(ctx, buildenv.Command{
		Argv: []string{
			"rsync", "-av",
			login + ":" + strings.TrimRight(src, "/") + "/",
			dest,
		},
	})
	p.recorder.IncSyncResult(host, err == nil)
	if err != nil {
		return errs.SyncError(host, err)
	}
	return nil
}
