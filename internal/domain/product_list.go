package domain

// ProductList is a named group of feed ids used for bulk "add from list".
type ProductList struct {
	ID            int                `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	ProductIDs    []string           `json:"products_ids"`
	MarkupPercent float64            `json:"markup_percent"`
	ItemMarkups   map[string]float64 `json:"product_markups"`
	CreatedAt     FlexTime           `json:"created_at"`
}

// MarkupFor returns the per-item markup for feedID, or the list default.
func (l *ProductList) MarkupFor(feedID string) float64 {
	if m, ok := l.ItemMarkups[NormalizeXMLID(feedID)]; ok {
		return m
	}
	return l.MarkupPercent
}

// ProductListPatch carries the fields of an UpdateList call; nil leaves a field unchanged.
type ProductListPatch struct {
	Name          *string
	Description   *string
	ProductIDs    []string
	MarkupPercent *float64
	ItemMarkups   map[string]float64
}
