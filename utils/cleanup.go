package utils

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// StartJanitor launches a background goroutine that runs sweep every interval
// until ctx is cancelled. It is best-effort: sweep is expected to log its own failures.
func StartJanitor(ctx context.Context, interval time.Duration, sweep func()) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			// Wait first to avoid racing the stores at startup
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sweep()
			}
		}
	}()
}

// RemoveStaleFiles deletes regular files in dir matching pattern whose
// modification time is older than maxAge. It returns how many were removed.
func RemoveStaleFiles(dir, pattern string, maxAge time.Duration) int {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		Sugar.Warnw("stale file glob failed", "dir", dir, "pattern", pattern, "error", err)
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(m); err != nil {
			Sugar.Warnw("remove stale file failed", "path", m, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		Sugar.Infow("removed stale files", "dir", dir, "count", removed)
	}
	return removed
}
