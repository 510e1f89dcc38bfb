package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

// ArchiveJanitor removes old feed downloads, keeping the newest ones.
type ArchiveJanitor struct {
	dir      string
	pattern  string
	keep     int
	live     string
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewArchiveJanitor creates a janitor for files matching pattern in dir.
// The live feed file is never removed.
func NewArchiveJanitor(dir, pattern string, keep int, liveFeed string, log logger.Logger, interval time.Duration) *ArchiveJanitor {
	if keep < 1 {
		keep = 1
	}
	return &ArchiveJanitor{
		dir:      dir,
		pattern:  pattern,
		keep:     keep,
		live:     liveFeed,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a collection immediately, then periodically.
func (aj *ArchiveJanitor) Start(ctx context.Context) {
	if _, err := aj.Collect(); err != nil {
		aj.logger.Warn("initial archive cleanup failed", logger.Error(err))
	}

	ticker := time.NewTicker(aj.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := aj.Collect(); err != nil {
					aj.logger.Error("archive cleanup failed", logger.Error(err))
				}
			case <-aj.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the janitor.
func (aj *ArchiveJanitor) Stop() {
	aj.stopOnce.Do(func() { close(aj.stopCh) })
}

type archive struct {
	path string
	mod  time.Time
}

// Collect deletes all but the newest keep archives and returns how many
// files were removed. Files that fail to delete are logged and skipped.
func (aj *ArchiveJanitor) Collect() (int, error) {
	matches, err := filepath.Glob(filepath.Join(aj.dir, aj.pattern))
	if err != nil {
		return 0, fmt.Errorf("invalid archive pattern %q: %w", aj.pattern, err)
	}

	live, _ := filepath.Abs(aj.live)
	archives := make([]archive, 0, len(matches))
	for _, path := range matches {
		if abs, _ := filepath.Abs(path); abs == live {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		archives = append(archives, archive{path: path, mod: info.ModTime()})
	}

	if len(archives) <= aj.keep {
		aj.logger.Debug("no archives to clean up", logger.Int("archives", len(archives)))
		return 0, nil
	}

	sort.Slice(archives, func(i, j int) bool {
		if archives[i].mod.Equal(archives[j].mod) {
			return archives[i].path > archives[j].path
		}
		return archives[i].mod.After(archives[j].mod)
	})

	removed := 0
	for _, a := range archives[aj.keep:] {
		if err := os.Remove(a.path); err != nil {
			aj.logger.Warn("failed to remove archive",
				logger.String("path", a.path),
				logger.Error(err))
			continue
		}
		removed++
	}

	aj.logger.Info("archive cleanup completed",
		logger.Int("removed", removed),
		logger.Int("kept", aj.keep))
	return removed, nil
}
