package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stockroom/internal/catalog"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

// Ingester reconciles the feed into the catalog.
type Ingester interface {
	Ingest(pathOverride string) (*catalog.IngestReport, error)
}

// FeedReloader re-ingests the feed periodically and on demand. Periodic runs
// are skipped while the feed file is unchanged; manual runs always ingest.
type FeedReloader struct {
	ingester      Ingester
	feedPath      string
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}

	mu       sync.Mutex
	lastMod  time.Time
	lastSize int64
	lastErr  error
	lastRun  time.Time
}

// NewFeedReloader creates a reloader. The trigger channel is buffered so one
// manual request can wait while a run is in progress.
func NewFeedReloader(ing Ingester, feedPath string, log logger.Logger, interval time.Duration) *FeedReloader {
	return &FeedReloader{
		ingester:      ing,
		feedPath:      feedPath,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
	}
}

// Start ingests once, then keeps reloading until ctx ends or Stop is called.
// A failed initial ingestion is logged; the catalog on disk keeps serving.
func (fr *FeedReloader) Start(ctx context.Context) {
	if err := fr.Reload(ctx, true); err != nil {
		fr.logger.Warn("initial feed ingestion failed, serving stored catalog",
			logger.Error(err))
	}

	ticker := time.NewTicker(fr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := fr.Reload(ctx, false); err != nil {
					fr.logger.Error("failed to reload feed", logger.Error(err))
				}
			case <-fr.manualTrigger:
				fr.logger.Info("manual reload triggered")
				if err := fr.Reload(ctx, true); err != nil {
					fr.logger.Error("failed to reload feed", logger.Error(err))
				}
			case <-fr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Trigger queues a manual reload. It returns false when one is already queued.
func (fr *FeedReloader) Trigger() bool {
	select {
	case fr.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop stops the reloader. It is safe to call more than once.
func (fr *FeedReloader) Stop() {
	fr.stopOnce.Do(func() { close(fr.stopCh) })
}

// Reload ingests the feed. Unless force is set, it does nothing when the
// feed file has the same size and modification time as at the last success.
func (fr *FeedReloader) Reload(ctx context.Context, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, statErr := os.Stat(fr.feedPath)
	if !force && statErr == nil && fr.unchanged(info) {
		fr.logger.Debug("feed unchanged, skipping reload")
		return nil
	}

	_, err := fr.ingester.Ingest("")

	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.lastRun = time.Now()
	fr.lastErr = err
	if err == nil && statErr == nil {
		fr.lastMod = info.ModTime()
		fr.lastSize = info.Size()
	}
	return err
}

func (fr *FeedReloader) unchanged(info os.FileInfo) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return !fr.lastMod.IsZero() && info.ModTime().Equal(fr.lastMod) && info.Size() == fr.lastSize
}

// Status returns when the last run finished and its error.
func (fr *FeedReloader) Status() (time.Time, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.lastRun, fr.lastErr
}
