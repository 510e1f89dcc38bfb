package domain

// FeedEntry is one normalized offer from the supplier feed. It lives only
// for a single ingestion cycle and is never persisted directly.
type FeedEntry struct {
	ID           string
	UUID         string
	Name         string
	EAN          string
	Producer     string
	URL          string
	Category     string
	CategoryPath []string

	// PriceNet and DiscountedNet are the raw net prices from the feed.
	PriceNet      float64
	DiscountedNet float64
	// PriceNetXML is the effective net price: DiscountedNet when nonzero, else PriceNet.
	PriceNetXML float64
	// OriginalPrice is PriceNetXML with VAT applied.
	OriginalPrice float64
	VAT           int
	// PriceError marks an offer whose price text could not be parsed;
	// all price fields are zero in that case.
	PriceError bool

	Stock  int
	Images []string
	Image  *string

	// InShop is set by feed searches when the catalog already holds this offer.
	InShop bool
}
