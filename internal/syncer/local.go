package syncer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	errs "git.home.luguber.info/inful/docsforge/internal/errors"
	"git.home.luguber.info/inful/docsforge/internal/logfields"
	"git.home.luguber.info/inful/docsforge/internal/metrics"
)

// Local replaces the destination with a fresh copy of the source tree. Used
// when the build host serves the documentation itself.
type Local struct {
	recorder metrics.Recorder
}

// Sync implements Syncer.
func (l *Local) Sync(ctx context.Context, src, dest string) error {
	err := l.sync(ctx, src, dest)
	l.recorder.IncSyncResult("local", err == nil)
	if err != nil {
		return errs.SyncError("local", err)
	}
	return nil
}

func (l *Local) sync(ctx context.Context, src, dest string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("source missing: %w", err)
	}

	// Stage next to the destination, then swap. Readers never see a
	// half-copied tree.
	staging := dest + ".new"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clean staging dir: %w", err)
	}
	if err := copyTree(ctx, src, staging); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("remove old destination: %w", err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("activate new destination: %w", err)
	}

	slog.Info("Published build locally", logfields.Path(dest))
	return nil
}

func copyTree(ctx context.Context, src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
