package catalog

import (
	"strings"

	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

// FeaturedCategories returns the saved featured categories. Without a saved
// selection, or when it cannot be read, the first main categories are used.
func (m *Manager) FeaturedCategories() []string {
	fallback := func() []string {
		main := m.MainCategories()
		return main[:min(len(main), fallbackFeaturedCategories)]
	}
	if m.deps.Featured == nil {
		return fallback()
	}

	names, found, err := m.deps.Featured.Load()
	if err != nil {
		m.log.Warn("featured categories unreadable, using defaults", logger.Error(err))
		return fallback()
	}
	if !found {
		return fallback()
	}
	if names == nil {
		names = []string{}
	}
	return names
}

// SaveFeaturedCategories stores up to six category names in order.
func (m *Manager) SaveFeaturedCategories(names []string) ([]string, error) {
	if m.deps.Featured == nil {
		return nil, invalid("featured categories not configured")
	}

	clean := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			clean = append(clean, n)
		}
	}
	if len(clean) > maxFeaturedCategories {
		clean = clean[:maxFeaturedCategories]
	}

	if err := m.deps.Featured.Save(clean); err != nil {
		return nil, err
	}
	m.log.Info("featured categories saved", logger.Int("count", len(clean)))
	return clean, nil
}
