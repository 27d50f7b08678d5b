// Package fs provides filesystem cleanup operations.
package fs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RemotePruner deletes aged objects from remote artifact storage.
type RemotePruner interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// Config holds configuration for the cleaner.
type Config struct {
	Dirs     []string      // local directories to sweep
	MaxAge   time.Duration // delete files older than this
	Interval time.Duration // sweep interval

	Remote       RemotePruner // optional
	RemoteMaxAge time.Duration
}

// Cleaner periodically removes aged temp and artifact files. Orphaned
// temp files exist because cleanup inside a request is best-effort.
type Cleaner struct {
	cfg    Config
	stopCh chan struct{}
}

// NewCleaner creates a Cleaner.
func NewCleaner(cfg Config) *Cleaner {
	return &Cleaner{
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately.
func (c *Cleaner) Start(ctx context.Context) {
	if c.cfg.Interval <= 0 {
		return
	}
	go c.loop(ctx)
}

// Stop stops the sweep loop.
func (c *Cleaner) Stop() {
	close(c.stopCh)
}

func (c *Cleaner) loop(ctx context.Context) {
	slog.Info("starting cleanup loop",
		"dirs", c.cfg.Dirs,
		"max_age", c.cfg.MaxAge,
		"interval", c.cfg.Interval,
	)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.SweepNow(ctx)

	for {
		select {
		case <-ticker.C:
			c.SweepNow(ctx)
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		}
	}
}

// SweepNow performs one immediate sweep of every configured target.
func (c *Cleaner) SweepNow(ctx context.Context) {
	for _, dir := range c.cfg.Dirs {
		c.sweepDir(dir)
	}
	if c.cfg.Remote != nil && c.cfg.RemoteMaxAge > 0 {
		if _, err := c.cfg.Remote.DeleteOlderThan(ctx, c.cfg.RemoteMaxAge); err != nil {
			slog.Error("remote cleanup failed", "error", err)
		}
	}
}

func (c *Cleaner) sweepDir(dir string) {
	threshold := time.Now().Add(-c.cfg.MaxAge)
	deleted := 0

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if err := os.Remove(path); err != nil {
				slog.Warn("failed to delete aged file", "path", path, "error", err)
			} else {
				deleted++
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		slog.Error("cleanup sweep error", "dir", dir, "error", err)
	}

	if deleted > 0 {
		slog.Info("cleanup sweep completed", "dir", dir, "deleted", deleted)
	}
}
