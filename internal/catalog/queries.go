package catalog

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/utils"
)

// CategoryTree is the nested category hierarchy; leaves map to empty trees.
type CategoryTree map[string]CategoryTree

func visible(includeUnavailable bool) func(e *domain.Entry) bool {
	return func(e *domain.Entry) bool {
		return includeUnavailable || e.AvailableForSale
	}
}

// All returns the catalog in persisted order.
func (m *Manager) All(includeUnavailable bool) []domain.Entry {
	return m.idx.Filter(visible(includeUnavailable))
}

// Published returns the entries currently offered for sale.
func (m *Manager) Published() []domain.Entry {
	return m.All(false)
}

// Get returns the entry with id. Unavailable entries are hidden unless
// includeUnavailable is set.
func (m *Manager) Get(id string, includeUnavailable bool) (*domain.Entry, error) {
	e, ok := m.idx.Get(id)
	if !ok || !(includeUnavailable || e.AvailableForSale) {
		return nil, notFound(id)
	}
	return &e, nil
}

// FindByText matches query case-insensitively against name and description.
// A blank query matches every visible entry.
func (m *Manager) FindByText(query string, includeUnavailable bool) []domain.Entry {
	query = strings.TrimSpace(query)
	show := visible(includeUnavailable)
	return m.idx.Filter(func(e *domain.Entry) bool {
		return show(e) && (utils.FoldContains(e.Name, query) || utils.FoldContains(e.Description, query))
	})
}

// ByCategory returns entries whose leaf category or any path segment is category.
func (m *Manager) ByCategory(category string, includeUnavailable bool) []domain.Entry {
	show := visible(includeUnavailable)
	return m.idx.Filter(func(e *domain.Entry) bool {
		return show(e) && inCategory(e, category)
	})
}

func inCategory(e *domain.Entry, category string) bool {
	return e.Category == category || slices.Contains(e.CategoryPath, category)
}

// Categories returns the distinct leaf categories, sorted.
func (m *Manager) Categories() []string {
	seen := make(map[string]struct{})
	for _, e := range m.idx.Snapshot() {
		if e.Category != "" {
			seen[e.Category] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// MainCategories returns the distinct first path segments, sorted.
func (m *Manager) MainCategories() []string {
	seen := make(map[string]struct{})
	for _, e := range m.idx.Snapshot() {
		if len(e.CategoryPath) > 0 {
			seen[e.CategoryPath[0]] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// CategoryTree builds the hierarchy from every entry's category path.
func (m *Manager) CategoryTree() CategoryTree {
	tree := CategoryTree{}
	for _, e := range m.idx.Snapshot() {
		level := tree
		for _, name := range e.CategoryPath {
			next, ok := level[name]
			if !ok {
				next = CategoryTree{}
				level[name] = next
			}
			level = next
		}
	}
	return tree
}

// Recent returns up to limit entries, newest first. With days > 0 only
// entries added within that many days are kept; entries with no known
// added time are always kept.
func (m *Manager) Recent(limit, days int) []domain.Entry {
	entries := m.idx.Snapshot()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AddedAt.After(entries[j].AddedAt.Time)
	})

	if days > 0 {
		cutoff := m.opts.Now().Add(-time.Duration(days) * 24 * time.Hour)
		kept := entries[:0]
		for _, e := range entries {
			if e.AddedAt.IsZero() || !e.AddedAt.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
