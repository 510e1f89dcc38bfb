// Package reconcile merges a freshly parsed feed into the previous catalog
// without losing curated state.
package reconcile

import (
	"strconv"
	"time"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/index"
	"github.com/MrSnakeDoc/stockroom/internal/pricing"
)

// Options controls what survives a merge besides the feed itself.
type Options struct {
	// RetainManual keeps entries without a feed origin.
	RetainManual bool
	// Now stamps new and changed entries. Defaults to time.Now.
	Now func() time.Time
}

// Stats summarizes one merge.
type Stats struct {
	Added     int
	Updated   int
	Unchanged int
	// Retained counts manual entries kept across the merge.
	Retained int
	// Vanished counts feed entries no longer offered; they are kept with stock 0.
	Vanished int
	// Dropped counts manual entries discarded because RetainManual is off,
	// plus stale duplicates sharing a feed id.
	Dropped int
}

// Merge builds the next catalog from feed and previous. Feed entries come
// first in feed order, followed by retained entries in their previous order.
// previous is not modified.
func Merge(feed []domain.FeedEntry, previous []domain.Entry, opts Options) ([]domain.Entry, Stats) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	stamp := domain.NewFlexTime(now())

	var stats Stats
	prevByXMLID := make(map[string]int, len(previous))
	for i := range previous {
		if xmlID := previous[i].FeedID(); xmlID != "" {
			if _, seen := prevByXMLID[xmlID]; !seen {
				prevByXMLID[xmlID] = i
			}
		}
	}

	ids := newIDAllocator(previous)
	offered := make(map[string]struct{}, len(feed))
	out := make([]domain.Entry, 0, len(feed)+len(previous))

	for _, fe := range feed {
		offered[fe.ID] = struct{}{}
		next := FromFeed(fe, stamp)

		i, known := prevByXMLID[fe.ID]
		if !known {
			next.ID = ids.next()
			out = append(out, next)
			stats.Added++
			continue
		}

		prev := &previous[i]
		carryCurated(&next, prev)
		if next.ID == "" {
			next.ID = ids.next()
		}
		if next.SameContent(prev) {
			next.LastModified = prev.LastModified
			stats.Unchanged++
		} else {
			stats.Updated++
		}
		out = append(out, next)
	}

	for i := range previous {
		prev := &previous[i]
		xmlID := prev.FeedID()

		if xmlID == "" {
			if !opts.RetainManual {
				stats.Dropped++
				continue
			}
			out = append(out, prev.Clone())
			stats.Retained++
			continue
		}

		if first := prevByXMLID[xmlID]; first != i {
			stats.Dropped++
			continue
		}
		if _, ok := offered[xmlID]; ok {
			continue
		}

		kept := prev.Clone()
		if kept.Stock != 0 {
			kept.Stock = 0
			kept.LastModified = stamp
		}
		out = append(out, kept)
		stats.Vanished++
	}

	return out, stats
}

// FromFeed builds a provisional catalog entry from a feed offer: not for
// sale, no markup, price equal to the gross base price. ID is left empty.
func FromFeed(fe domain.FeedEntry, stamp domain.FlexTime) domain.Entry {
	xmlID := fe.ID
	e := domain.Entry{
		XMLID:            &xmlID,
		UUID:             fe.UUID,
		Name:             fe.Name,
		Category:         fe.Category,
		CategoryPath:     append([]string(nil), fe.CategoryPath...),
		EAN:              fe.EAN,
		Producer:         fe.Producer,
		URL:              fe.URL,
		Images:           append([]string{}, fe.Images...),
		OriginalPrice:    fe.OriginalPrice,
		Price:            fe.OriginalPrice,
		DiscountedPrice:  fe.OriginalPrice,
		VAT:              fe.VAT,
		Stock:            fe.Stock,
		AvailableForSale: false,
		AddedAt:          stamp,
		LastModified:     stamp,
	}
	if fe.Image != nil {
		e.Image = domain.StringPtr(*fe.Image)
	}
	if !fe.PriceError {
		e.PriceNetXML = domain.FloatPtr(fe.PriceNetXML)
	}
	return e
}

// ApplyMarkup sets the markup and derives price and discounted price from
// the base price. With no known base only the percent is stored.
func ApplyMarkup(e *domain.Entry, markup float64) {
	e.MarkupPercent = markup
	if e.OriginalPrice <= 0 {
		return
	}
	e.Price = pricing.PriceWithMarkup(e.OriginalPrice, markup)
	e.DiscountedPrice = e.Price
}

// carryCurated copies the fields a human owns from prev onto next.
func carryCurated(next *domain.Entry, prev *domain.Entry) {
	next.ID = prev.ID
	if prev.AddedAt.IsZero() {
		next.AddedAt = next.LastModified
	} else {
		next.AddedAt = prev.AddedAt
	}

	if prev.AvailableForSale {
		next.AvailableForSale = true
	}
	if prev.Description != "" {
		next.Description = prev.Description
	}
	ApplyMarkup(next, prev.MarkupPercent)

	next.DeliveryTime = prev.DeliveryTime
	if prev.DeliveryCost != nil {
		next.DeliveryCost = domain.FloatPtr(*prev.DeliveryCost)
	}
	next.NameOverride = prev.NameOverride
	next.CategoryOverride = prev.CategoryOverride
	next.ApplyOverrides()
}

type idAllocator struct {
	last int64
}

func newIDAllocator(existing []domain.Entry) *idAllocator {
	n, _ := strconv.ParseInt(index.NextID(existing), 10, 64)
	return &idAllocator{last: n - 1}
}

func (a *idAllocator) next() string {
	a.last++
	return strconv.FormatInt(a.last, 10)
}
