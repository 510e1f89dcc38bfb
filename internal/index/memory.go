package index

import (
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
)

// MemoryIndex holds the committed catalog in memory, in persisted order,
// with lookups by id and by feed id. Callers always receive copies.
type MemoryIndex struct {
	mu         sync.RWMutex
	entries    []domain.Entry
	byID       map[string]int // ID -> position
	byXMLID    map[string]int // normalized xml_id -> position
	lastCommit time.Time
	loaded     bool
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byID:    make(map[string]int),
		byXMLID: make(map[string]int),
	}
}

// Replace swaps in a new committed catalog. The index takes ownership of entries.
func (idx *MemoryIndex) Replace(entries []domain.Entry) {
	byID := make(map[string]int, len(entries))
	byXMLID := make(map[string]int, len(entries))
	for i := range entries {
		byID[entries[i].ID] = i
		if xmlID := entries[i].FeedID(); xmlID != "" {
			if _, seen := byXMLID[xmlID]; !seen {
				byXMLID[xmlID] = i
			}
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = entries
	idx.byID = byID
	idx.byXMLID = byXMLID
	idx.lastCommit = time.Now()
	idx.loaded = true
}

// Snapshot returns a deep copy of every entry in order.
func (idx *MemoryIndex) Snapshot() []domain.Entry {
	return idx.Filter(nil)
}

// Filter returns copies of the entries for which keep returns true.
// A nil keep selects everything.
func (idx *MemoryIndex) Filter(keep func(e *domain.Entry) bool) []domain.Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.Entry, 0, len(idx.entries))
	for i := range idx.entries {
		if keep == nil || keep(&idx.entries[i]) {
			out = append(out, idx.entries[i].Clone())
		}
	}
	return out
}

// Get retrieves an entry by ID
func (idx *MemoryIndex) Get(id string) (domain.Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	i, ok := idx.byID[id]
	if !ok {
		return domain.Entry{}, false
	}
	return idx.entries[i].Clone(), true
}

// GetByXMLID retrieves the entry linked to a feed offer
func (idx *MemoryIndex) GetByXMLID(xmlID string) (domain.Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	i, ok := idx.byXMLID[domain.NormalizeXMLID(xmlID)]
	if !ok {
		return domain.Entry{}, false
	}
	return idx.entries[i].Clone(), true
}

// HasXMLID reports whether any entry is linked to the feed offer
func (idx *MemoryIndex) HasXMLID(xmlID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, ok := idx.byXMLID[domain.NormalizeXMLID(xmlID)]
	return ok
}

// Count returns the number of entries in the index
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries)
}

// CountAvailable returns the number of entries available for sale
func (idx *MemoryIndex) CountAvailable() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for i := range idx.entries {
		if idx.entries[i].AvailableForSale {
			n++
		}
	}
	return n
}

// Loaded reports whether a catalog has been committed at least once
func (idx *MemoryIndex) Loaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.loaded
}

// GetLastCommit returns the time of the last Replace
func (idx *MemoryIndex) GetLastCommit() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastCommit
}

// NextID returns max(numeric ids)+1 as a string. Non-numeric ids are ignored.
func NextID(entries []domain.Entry) string {
	var maxID int64
	for i := range entries {
		if n, err := strconv.ParseInt(entries[i].ID, 10, 64); err == nil && n > maxID {
			maxID = n
		}
	}
	return strconv.FormatInt(maxID+1, 10)
}
