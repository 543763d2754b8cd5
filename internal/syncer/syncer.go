// Package syncer publishes built sites. Local mode copies artifacts into the
// serving root on the same host; remote mode pushes them to the app servers
// over ssh/rsync. Pull mode is the inverse, used by app servers to fetch a
// build from the build host.
package syncer

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/docsforge/internal/buildenv"
	"git.home.luguber.info/inful/docsforge/internal/config"
	"git.home.luguber.info/inful/docsforge/internal/metrics"
	"git.home.luguber.info/inful/docsforge/internal/retry"
)

// Syncer publishes a built site from src to dest.
type Syncer interface {
	Sync(ctx context.Context, src, dest string) error
}

// New selects the syncer for the configured mode.
func New(cfg config.SyncConfig, env buildenv.Environment, recorder metrics.Recorder) (Syncer, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	switch cfg.Mode {
	// In pull mode the build host publishes locally and the app servers
	// fetch with a Puller.
	case config.SyncModeLocal, config.SyncModePull, "":
		return &Local{recorder: recorder}, nil
	case config.SyncModeRemote:
		return &Remote{cfg: cfg, env: env, recorder: recorder, policy: retry.DefaultPolicy()}, nil
	default:
		return nil, fmt.Errorf("no syncer for mode %q", cfg.Mode)
	}
}
