package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

// Mirror is the full-replace side of the price mirror.
type Mirror interface {
	Sync(ctx context.Context, entries []domain.Entry) (int, error)
}

// Snapshotter lists every catalog entry.
type Snapshotter interface {
	All(includeUnavailable bool) []domain.Entry
}

// MirrorSyncer pushes the whole catalog to the price mirror on startup.
// Later changes reach the mirror through the catalog's sink.
type MirrorSyncer struct {
	mirror  Mirror
	catalog Snapshotter
	logger  logger.Logger
}

// NewMirrorSyncer creates a new mirror syncer
func NewMirrorSyncer(m Mirror, cat Snapshotter, log logger.Logger) *MirrorSyncer {
	return &MirrorSyncer{
		mirror:  m,
		catalog: cat,
		logger:  log,
	}
}

// Sync replaces the mirror content with the current catalog.
func (ms *MirrorSyncer) Sync(ctx context.Context) error {
	ms.logger.Info("syncing catalog prices to redis")

	entries := ms.catalog.All(true)
	stale, err := ms.mirror.Sync(ctx, entries)
	if err != nil {
		return err
	}

	ms.logger.Info("synced catalog prices to redis",
		logger.Int("count", len(entries)),
		logger.Int("stale_removed", stale))
	return nil
}
