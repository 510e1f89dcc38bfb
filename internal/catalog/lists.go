package catalog

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

// ListImport is the outcome of AddFromList.
type ListImport struct {
	Added    []domain.Entry
	Existing []string // feed ids already in the catalog
	Missing  []string // feed ids absent from the feed
}

// Lists returns every saved product list.
func (m *Manager) Lists() ([]domain.ProductList, error) {
	if m.deps.Lists == nil {
		return []domain.ProductList{}, nil
	}
	lists, _, err := m.deps.Lists.Load()
	if err != nil {
		return nil, fmt.Errorf("load product lists: %w", err)
	}
	if lists == nil {
		lists = []domain.ProductList{}
	}
	return lists, nil
}

// List returns the product list with id.
func (m *Manager) List(id int) (*domain.ProductList, error) {
	lists, err := m.Lists()
	if err != nil {
		return nil, err
	}
	for i := range lists {
		if lists[i].ID == id {
			return &lists[i], nil
		}
	}
	return nil, fmt.Errorf("list %d: %w", id, domain.ErrListNotFound)
}

// SaveList stores a new product list and returns it with its assigned id.
func (m *Manager) SaveList(in domain.ProductList) (*domain.ProductList, error) {
	if m.deps.Lists == nil {
		return nil, fmt.Errorf("product lists not configured: %w", domain.ErrPersistence)
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("list name is required")
	}
	in.ProductIDs = normalizeIDs(in.ProductIDs)
	if len(in.ProductIDs) == 0 {
		return nil, invalid("list %q has no products", in.Name)
	}
	if err := checkMarkup(in.MarkupPercent); err != nil {
		return nil, err
	}
	markups, err := normalizeMarkups(in.ItemMarkups)
	if err != nil {
		return nil, err
	}
	in.ItemMarkups = markups

	m.listsMu.Lock()
	defer m.listsMu.Unlock()

	lists, err := m.Lists()
	if err != nil {
		return nil, err
	}
	maxID := 0
	for _, l := range lists {
		maxID = max(maxID, l.ID)
	}
	in.ID = maxID + 1
	in.CreatedAt = m.stamp()

	if err := m.deps.Lists.Save(append(lists, in)); err != nil {
		return nil, err
	}
	m.log.Info("product list saved", logger.Int("list_id", in.ID), logger.Int("products", len(in.ProductIDs)))
	return &in, nil
}

// UpdateList applies patch to the list with id.
func (m *Manager) UpdateList(id int, patch domain.ProductListPatch) (*domain.ProductList, error) {
	if m.deps.Lists == nil {
		return nil, fmt.Errorf("list %d: %w", id, domain.ErrListNotFound)
	}

	m.listsMu.Lock()
	defer m.listsMu.Unlock()

	lists, err := m.Lists()
	if err != nil {
		return nil, err
	}
	pos := -1
	for i := range lists {
		if lists[i].ID == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, fmt.Errorf("list %d: %w", id, domain.ErrListNotFound)
	}

	l := lists[pos]
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, invalid("list name must not be empty")
		}
		l.Name = name
	}
	if patch.Description != nil {
		l.Description = *patch.Description
	}
	if patch.ProductIDs != nil {
		l.ProductIDs = normalizeIDs(patch.ProductIDs)
	}
	if patch.MarkupPercent != nil {
		if err := checkMarkup(*patch.MarkupPercent); err != nil {
			return nil, err
		}
		l.MarkupPercent = *patch.MarkupPercent
	}
	if patch.ItemMarkups != nil {
		markups, err := normalizeMarkups(patch.ItemMarkups)
		if err != nil {
			return nil, err
		}
		l.ItemMarkups = markups
	}
	lists[pos] = l

	if err := m.deps.Lists.Save(lists); err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteList removes the list with id.
func (m *Manager) DeleteList(id int) error {
	if m.deps.Lists == nil {
		return fmt.Errorf("list %d: %w", id, domain.ErrListNotFound)
	}

	m.listsMu.Lock()
	defer m.listsMu.Unlock()

	lists, err := m.Lists()
	if err != nil {
		return err
	}
	kept := lists[:0]
	for _, l := range lists {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lists) {
		return fmt.Errorf("list %d: %w", id, domain.ErrListNotFound)
	}
	return m.deps.Lists.Save(kept)
}

// AddFromList adds every feed offer of list id to the catalog, on sale,
// priced with the per-item markup or the list default.
func (m *Manager) AddFromList(id int) (*ListImport, error) {
	list, err := m.List(id)
	if err != nil {
		return nil, err
	}
	res, err := m.deps.Feed.Parse("")
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.idx.Snapshot()
	out := &ListImport{}
	for _, feedID := range list.ProductIDs {
		e, created, err := m.appendFromFeed(&next, res, feedID, list.MarkupFor(feedID), true)
		switch {
		case err != nil:
			out.Missing = append(out.Missing, feedID)
		case created:
			out.Added = append(out.Added, e)
		default:
			out.Existing = append(out.Existing, feedID)
		}
	}

	if len(out.Added) > 0 {
		if err := m.commit(next, out.Added, nil); err != nil {
			return nil, err
		}
	}
	m.log.Info("product list imported",
		logger.Int("list_id", id),
		logger.Int("added", len(out.Added)),
		logger.Int("existing", len(out.Existing)),
		logger.Int("missing", len(out.Missing)),
	)
	return out, nil
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = domain.NormalizeXMLID(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// normalizeMarkups returns a copy of markups keyed by normalized feed id.
func normalizeMarkups(markups map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(markups))
	for id, pct := range markups {
		id = domain.NormalizeXMLID(id)
		if id == "" {
			continue
		}
		if err := checkMarkup(pct); err != nil {
			return nil, fmt.Errorf("item %q: %w", id, err)
		}
		out[id] = pct
	}
	return out, nil
}
