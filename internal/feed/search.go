package feed

import (
	"fmt"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/utils"
)

// SearchField selects which offer attribute a feed search matches against.
type SearchField string

const (
	FieldID   SearchField = "id"
	FieldName SearchField = "name"
	FieldEAN  SearchField = "ean"
	FieldAny  SearchField = "any"
)

// ParseSearchField validates a user supplied field name. Empty means any.
func ParseSearchField(s string) (SearchField, error) {
	switch f := SearchField(s); f {
	case "":
		return FieldAny, nil
	case FieldID, FieldName, FieldEAN, FieldAny:
		return f, nil
	default:
		return "", fmt.Errorf("search field %q: %w", s, domain.ErrInvalidInput)
	}
}

// Search returns in-stock offers whose field contains query, case-insensitively.
func (r *Result) Search(query string, field SearchField) []domain.FeedEntry {
	if query == "" {
		return nil
	}

	var out []domain.FeedEntry
	for _, e := range r.Entries {
		if e.Stock <= 0 {
			continue
		}
		if matches(e, query, field) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e domain.FeedEntry, query string, field SearchField) bool {
	switch field {
	case FieldID:
		return utils.FoldContains(e.ID, query)
	case FieldName:
		return utils.FoldContains(e.Name, query)
	case FieldEAN:
		return utils.FoldContains(e.EAN, query)
	default:
		return utils.FoldContains(e.ID, query) ||
			utils.FoldContains(e.Name, query) ||
			utils.FoldContains(e.EAN, query)
	}
}
