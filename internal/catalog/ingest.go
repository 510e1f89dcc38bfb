package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/feed"
	"github.com/MrSnakeDoc/stockroom/internal/index"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
	"github.com/MrSnakeDoc/stockroom/internal/pricing"
	"github.com/MrSnakeDoc/stockroom/internal/reconcile"
)

// IngestReport describes one ingestion run.
type IngestReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source"`
	Parsed     int           `json:"parsed"`
	Skipped    int           `json:"skipped"`
	Duplicates int           `json:"duplicates"`
	OutOfStock int           `json:"out_of_stock"`
	// PriceErrors counts offers whose prices were zeroed.
	PriceErrors int `json:"price_errors"`
	Added       int `json:"added"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	Retained    int `json:"retained"`
	Vanished    int `json:"vanished"`
	Dropped     int `json:"dropped"`
	Total       int `json:"total"`
}

// Ingest parses the feed (pathOverride when non-empty) and reconciles it into
// the catalog. On a feed error the catalog is left untouched.
func (m *Manager) Ingest(pathOverride string) (*IngestReport, error) {
	report := &IngestReport{
		RunID:     uuid.NewString(),
		StartedAt: m.opts.Now(),
		Source:    pathOverride,
	}
	log := m.log.With(logger.String("run_id", report.RunID))

	res, err := m.deps.Feed.Parse(pathOverride)
	if err != nil {
		log.Error("feed ingestion aborted, catalog unchanged", logger.Error(err))
		return nil, err
	}
	report.Parsed = len(res.Entries)
	report.Skipped = res.Skipped
	report.Duplicates = res.Duplicates
	report.OutOfStock = res.OutOfStock
	report.PriceErrors = res.PriceErrors

	m.mu.Lock()
	defer m.mu.Unlock()

	previous := m.idx.Snapshot()
	next, stats := reconcile.Merge(res.Entries, previous, reconcile.Options{
		RetainManual: m.opts.RetainManual,
		Now:          m.opts.Now,
	})

	if err := m.commit(next, changedSince(previous, next), removedSince(previous, next)); err != nil {
		log.Error("feed ingestion not persisted", logger.Error(err))
		return nil, err
	}

	report.Added = stats.Added
	report.Updated = stats.Updated
	report.Unchanged = stats.Unchanged
	report.Retained = stats.Retained
	report.Vanished = stats.Vanished
	report.Dropped = stats.Dropped
	report.Total = len(next)
	report.Duration = time.Since(report.StartedAt)
	if report.Duration < 0 {
		report.Duration = 0
	}

	m.statusMu.Lock()
	m.lastIngest = report
	m.statusMu.Unlock()

	log.Info("feed ingested",
		logger.Int("parsed", report.Parsed),
		logger.Int("added", report.Added),
		logger.Int("updated", report.Updated),
		logger.Int("retained", report.Retained),
		logger.Int("vanished", report.Vanished),
		logger.Int("price_errors", report.PriceErrors),
		logger.Int("total", report.Total),
	)
	return report, nil
}

// LastIngest returns the report of the last successful ingestion, or nil.
func (m *Manager) LastIngest() *IngestReport {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	if m.lastIngest == nil {
		return nil
	}
	r := *m.lastIngest
	return &r
}

// AddFromFeed copies the feed offer feedID into the catalog. When an entry
// with that feed id already exists it is returned unchanged instead.
func (m *Manager) AddFromFeed(feedID string, markupPct float64, availableForSale bool) (*domain.Entry, error) {
	feedID = domain.NormalizeXMLID(feedID)
	if feedID == "" {
		return nil, invalid("feed id is required")
	}
	if err := checkMarkup(markupPct); err != nil {
		return nil, err
	}
	if existing, ok := m.idx.GetByXMLID(feedID); ok {
		m.log.Info("feed offer already in catalog", logger.String("xml_id", feedID), logger.String("entry_id", existing.ID))
		return &existing, nil
	}

	res, err := m.deps.Feed.Parse("")
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.idx.Snapshot()
	e, created, err := m.appendFromFeed(&next, res, feedID, markupPct, availableForSale)
	if err != nil {
		return nil, err
	}
	if created {
		if err := m.commit(next, []domain.Entry{e}, nil); err != nil {
			return nil, err
		}
		m.log.Info("feed offer added", logger.String("xml_id", feedID), logger.String("entry_id", e.ID))
	}
	out := e.Clone()
	return &out, nil
}

// appendFromFeed appends a new entry for feedID to next unless one exists.
func (m *Manager) appendFromFeed(next *[]domain.Entry, res *feed.Result, feedID string, markupPct float64, available bool) (domain.Entry, bool, error) {
	for i := range *next {
		if (*next)[i].FeedID() == feedID {
			return (*next)[i], false, nil
		}
	}

	fe, ok := res.Lookup(feedID)
	if !ok {
		return domain.Entry{}, false, fmt.Errorf("offer %q: %w", feedID, domain.ErrFeedEntryNotFound)
	}

	e := reconcile.FromFeed(fe, m.stamp())
	e.ID = index.NextID(*next)
	e.AvailableForSale = available
	reconcile.ApplyMarkup(&e, markupPct)

	*next = append(*next, e)
	return e, true, nil
}

// RecomputePriceFromFeed refreshes the base price of one entry from the
// live feed and reapplies its stored markup.
func (m *Manager) RecomputePriceFromFeed(id string) (*domain.Entry, error) {
	current, ok := m.idx.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	if !current.FromFeed() {
		return nil, fmt.Errorf("entry %q: %w", id, domain.ErrNotFeedSourced)
	}

	res, err := m.deps.Feed.Parse("")
	if err != nil {
		return nil, err
	}

	return m.mutateOne(id, func(e *domain.Entry) (bool, error) {
		fe, ok := res.Lookup(e.FeedID())
		if !ok {
			return false, fmt.Errorf("offer %q: %w", e.FeedID(), domain.ErrFeedEntryNotFound)
		}
		before := e.Clone()
		refreshPrice(e, fe)
		return !before.SameContent(e), nil
	})
}

// RecomputeAllFromFeed refreshes every feed-sourced entry that carries a
// markup. Entries without feed id or markup are skipped. It returns how many
// entries were recomputed, changed or not, and how many could not be found
// in the feed. Only changed entries are saved and published.
func (m *Manager) RecomputeAllFromFeed() (updated, failed int, err error) {
	res, err := m.deps.Feed.Parse("")
	if err != nil {
		return 0, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.idx.Snapshot()
	stamp := m.stamp()
	var changed []domain.Entry
	for i := range next {
		e := &next[i]
		if !e.FromFeed() || e.MarkupPercent == 0 {
			continue
		}
		fe, ok := res.Lookup(e.FeedID())
		if !ok {
			failed++
			m.log.Warn("entry missing from feed, price kept",
				logger.String("entry_id", e.ID),
				logger.String("xml_id", e.FeedID()),
			)
			continue
		}

		before := e.Clone()
		refreshPrice(e, fe)
		updated++
		if !before.SameContent(e) {
			e.LastModified = stamp
			changed = append(changed, *e)
		}
	}

	if len(changed) > 0 {
		if err := m.commit(next, changed, nil); err != nil {
			return 0, failed, err
		}
	}
	m.log.Info("prices recomputed from feed",
		logger.Int("updated", updated),
		logger.Int("changed", len(changed)),
		logger.Int("failed", failed),
	)
	return updated, failed, nil
}

func refreshPrice(e *domain.Entry, fe domain.FeedEntry) {
	if fe.PriceError {
		e.PriceNetXML = nil
	} else {
		e.PriceNetXML = domain.FloatPtr(fe.PriceNetXML)
	}
	e.VAT = fe.VAT
	e.OriginalPrice = fe.OriginalPrice
	e.Price = pricing.PriceWithMarkup(e.OriginalPrice, e.MarkupPercent)
	e.DiscountedPrice = e.Price
}

// SearchFeed searches in-stock feed offers and flags those already in the catalog.
func (m *Manager) SearchFeed(query string, field feed.SearchField) ([]domain.FeedEntry, error) {
	res, err := m.deps.Feed.Parse("")
	if err != nil {
		return nil, err
	}
	found := res.Search(query, field)
	for i := range found {
		found[i].InShop = m.idx.HasXMLID(found[i].ID)
	}
	return found, nil
}

// FeedEntriesByIDs returns the feed offers for ids in the given order.
// Ids absent from the feed are left out.
func (m *Manager) FeedEntriesByIDs(ids []string) ([]domain.FeedEntry, error) {
	res, err := m.deps.Feed.Parse("")
	if err != nil {
		return nil, err
	}
	out := make([]domain.FeedEntry, 0, len(ids))
	for _, id := range ids {
		if fe, ok := res.Lookup(id); ok {
			fe.InShop = m.idx.HasXMLID(fe.ID)
			out = append(out, fe)
		}
	}
	return out, nil
}

func changedSince(previous, next []domain.Entry) []domain.Entry {
	before := make(map[string]*domain.Entry, len(previous))
	for i := range previous {
		before[previous[i].ID] = &previous[i]
	}
	var changed []domain.Entry
	for i := range next {
		if prev, ok := before[next[i].ID]; !ok || !prev.SameContent(&next[i]) {
			changed = append(changed, next[i])
		}
	}
	return changed
}

func removedSince(previous, next []domain.Entry) []string {
	kept := make(map[string]struct{}, len(next))
	for i := range next {
		kept[next[i].ID] = struct{}{}
	}
	var removed []string
	for i := range previous {
		if _, ok := kept[previous[i].ID]; !ok {
			removed = append(removed, previous[i].ID)
		}
	}
	return removed
}

// IsFeedError reports whether err came from reading the feed.
func IsFeedError(err error) bool {
	return errors.Is(err, domain.ErrFeedUnavailable) || errors.Is(err, domain.ErrFeedMalformed)
}
