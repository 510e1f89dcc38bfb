// Package catalog is the facade the rest of the program uses to read and
// change the product catalog.
//
// Every mutation is built on a copy of the committed catalog, persisted,
// and only then published to readers. A failed save leaves memory and disk
// exactly as they were.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/feed"
	"github.com/MrSnakeDoc/stockroom/internal/index"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

// Store persists the full catalog.
type Store interface {
	Load() []domain.Entry
	Save(entries []domain.Entry) error
}

// FeedSource parses the supplier feed. An empty pathOverride means the
// configured feed file.
type FeedSource interface {
	Parse(pathOverride string) (*feed.Result, error)
}

// ListStore persists the named product lists.
type ListStore interface {
	Load() ([]domain.ProductList, bool, error)
	Save(lists []domain.ProductList) error
}

// FeaturedStore persists the featured category names.
type FeaturedStore interface {
	Load() ([]string, bool, error)
	Save(names []string) error
}

// PriceSink receives entries after they were committed, so checkout can
// read current prices. Failures never undo a commit.
type PriceSink interface {
	Publish(ctx context.Context, entries []domain.Entry) error
	Remove(ctx context.Context, ids ...string) error
}

// Deps are the collaborators of a Manager. Lists, Featured and Sink are optional.
type Deps struct {
	Store    Store
	Feed     FeedSource
	Lists    ListStore
	Featured FeaturedStore
	Sink     PriceSink
}

// Options tune catalog policy.
type Options struct {
	// RetainManual keeps entries without feed origin across ingestion.
	RetainManual bool
	// DefaultVAT applies to manual entries created without a VAT rate.
	DefaultVAT int
	// Now is the clock used for timestamps. Defaults to time.Now.
	Now func() time.Time
	// SinkTimeout bounds each price sink call. Defaults to 5s.
	SinkTimeout time.Duration
}

const (
	maxFeaturedCategories      = 6
	fallbackFeaturedCategories = 4
	defaultSinkTimeout         = 5 * time.Second
)

// Manager owns the in-memory catalog for one catalog file.
type Manager struct {
	deps Deps
	opts Options
	idx  *index.MemoryIndex
	log  logger.Logger

	// mu serializes mutations end to end: read snapshot, change, save, commit.
	mu sync.Mutex
	// listsMu serializes read-modify-write of the product lists file.
	listsMu sync.Mutex

	statusMu   sync.RWMutex
	lastIngest *IngestReport
}

func New(deps Deps, opts Options, log logger.Logger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaultSinkTimeout
	}
	return &Manager{
		deps: deps,
		opts: opts,
		idx:  index.NewMemoryIndex(),
		log:  log.With(logger.String("component", "catalog")),
	}
}

// Load reads the persisted catalog into memory and returns the entry count.
func (m *Manager) Load() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.deps.Store.Load()
	m.idx.Replace(entries)
	m.log.Info("catalog loaded",
		logger.Int("entries", len(entries)),
		logger.Int("available", m.idx.CountAvailable()),
	)
	return len(entries)
}

// Loaded reports whether the catalog has been read at least once.
func (m *Manager) Loaded() bool {
	return m.idx.Loaded()
}

// Count returns total and available-for-sale entry counts.
func (m *Manager) Count() (total, available int) {
	return m.idx.Count(), m.idx.CountAvailable()
}

// commit persists next and swaps it in. changed are pushed to the price
// sink afterwards, removed ids are withdrawn from it. Callers hold m.mu.
func (m *Manager) commit(next []domain.Entry, changed []domain.Entry, removed []string) error {
	if err := m.deps.Store.Save(next); err != nil {
		return err
	}
	m.idx.Replace(next)
	m.notifySink(changed, removed)
	return nil
}

func (m *Manager) notifySink(changed []domain.Entry, removed []string) {
	if m.deps.Sink == nil || (len(changed) == 0 && len(removed) == 0) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.SinkTimeout)
	defer cancel()

	if len(changed) > 0 {
		if err := m.deps.Sink.Publish(ctx, changed); err != nil {
			m.log.Warn("price mirror publish failed", logger.Int("entries", len(changed)), logger.Error(err))
		}
	}
	if len(removed) > 0 {
		if err := m.deps.Sink.Remove(ctx, removed...); err != nil {
			m.log.Warn("price mirror remove failed", logger.Strings("ids", removed), logger.Error(err))
		}
	}
}

// mutateOne applies fn to a copy of the entry with id and commits it.
// fn returns false to signal that nothing changed; nothing is saved then.
func (m *Manager) mutateOne(id string, fn func(e *domain.Entry) (bool, error)) (*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.idx.Snapshot()
	pos := position(next, id)
	if pos < 0 {
		return nil, notFound(id)
	}

	changed, err := fn(&next[pos])
	if err != nil {
		return nil, err
	}
	if !changed {
		out := next[pos]
		return &out, nil
	}

	next[pos].LastModified = m.stamp()
	if err := m.commit(next, []domain.Entry{next[pos]}, nil); err != nil {
		return nil, err
	}
	out := next[pos].Clone()
	return &out, nil
}

func (m *Manager) stamp() domain.FlexTime {
	return domain.NewFlexTime(m.opts.Now())
}

func position(entries []domain.Entry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
