package catalog

import (
	"strings"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/index"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
	"github.com/MrSnakeDoc/stockroom/internal/pricing"
)

// ManualEntry is the input for creating a product that is not in the feed.
type ManualEntry struct {
	Name        string
	Category    string
	Description string
	Stock       int
	Image       string

	// NetCost is the net purchase cost. With it the base price is NetCost plus VAT.
	NetCost *float64
	// VAT defaults to the configured rate.
	VAT *int
	// MarkupPercent drives the sell price when a cost basis exists.
	MarkupPercent *float64
	// Price is a direct gross sell price.
	Price *float64

	DeliveryTime string
	DeliveryCost *float64

	// AvailableForSale defaults to true.
	AvailableForSale *bool
}

// FieldUpdate is a partial update. Nil fields are left unchanged. Price and
// MarkupPercent are mutually exclusive; Price wins when both are set.
type FieldUpdate struct {
	Price         *float64
	MarkupPercent *float64
	VAT           *int
	Stock         *int
	DeliveryTime  *string
	DeliveryCost  *float64
	// Name and Category are stored as curated overrides.
	Name     *string
	Category *string
}

// AddManual creates a catalog entry with no feed origin.
func (m *Manager) AddManual(in ManualEntry) (*domain.Entry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if in.Stock < 0 {
		return nil, invalid("stock %d is negative", in.Stock)
	}
	for _, c := range []struct {
		label string
		v     *float64
	}{{"net cost", in.NetCost}, {"price", in.Price}, {"delivery cost", in.DeliveryCost}} {
		if err := checkAmount(c.label, c.v); err != nil {
			return nil, err
		}
	}
	if in.MarkupPercent != nil {
		if err := checkMarkup(*in.MarkupPercent); err != nil {
			return nil, err
		}
	}
	if in.VAT != nil && (*in.VAT < 0 || *in.VAT > 100) {
		return nil, invalid("vat %d out of range", *in.VAT)
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = domain.UncategorizedLabel
	}
	vat := m.opts.DefaultVAT
	if in.VAT != nil {
		vat = *in.VAT
	}
	available := true
	if in.AvailableForSale != nil {
		available = *in.AvailableForSale
	}

	stamp := m.stamp()
	e := domain.Entry{
		Custom:           true,
		Name:             name,
		Category:         category,
		CategoryPath:     []string{category},
		Images:           []string{},
		VAT:              vat,
		Stock:            in.Stock,
		AvailableForSale: available,
		Description:      in.Description,
		DeliveryTime:     in.DeliveryTime,
		AddedAt:          stamp,
		LastModified:     stamp,
	}
	if img := strings.TrimSpace(in.Image); img != "" {
		e.Image = domain.StringPtr(img)
		e.Images = []string{img}
	}
	if in.DeliveryCost != nil {
		e.DeliveryCost = domain.FloatPtr(*in.DeliveryCost)
	}
	m.priceManual(&e, in)

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.idx.Snapshot()
	e.ID = index.NextID(next)
	next = append(next, e)
	if err := m.commit(next, []domain.Entry{e}, nil); err != nil {
		return nil, err
	}

	m.log.Info("manual entry added", logger.String("entry_id", e.ID), logger.String("name", e.Name))
	out := e.Clone()
	return &out, nil
}

func (m *Manager) priceManual(e *domain.Entry, in ManualEntry) {
	switch {
	case in.NetCost != nil && *in.NetCost > 0:
		e.PriceNetCost = domain.FloatPtr(*in.NetCost)
		e.OriginalPrice = pricing.GrossFromNet(*in.NetCost, e.VAT)
		switch {
		case in.MarkupPercent != nil:
			e.MarkupPercent = *in.MarkupPercent
			e.Price = pricing.PriceWithMarkup(e.OriginalPrice, e.MarkupPercent)
		case in.Price != nil:
			m.repriceFromGross(e, *in.Price)
		default:
			e.Price = e.OriginalPrice
		}

	case in.Price != nil && *in.Price > 0:
		e.OriginalPrice = *in.Price
		e.Price = *in.Price
		m.log.Info("manual entry priced without cost basis, markup set to 0",
			logger.String("name", e.Name),
			logger.Float64("price", e.Price),
		)

	default:
		m.log.Warn("manual entry has no price", logger.String("name", e.Name))
	}
	e.DiscountedPrice = e.Price
}

// repriceFromGross derives the markup for a requested gross price. The stored
// price is rederived from the rounded markup so price and markup stay consistent.
func (m *Manager) repriceFromGross(e *domain.Entry, gross float64) {
	pct, ok := pricing.MarkupFromPrices(gross, e.OriginalPrice)
	if !ok {
		e.OriginalPrice = gross
		e.MarkupPercent = 0
		e.Price = gross
		m.log.Info("no base price, gross price becomes the base",
			logger.String("entry_id", e.ID),
			logger.Float64("price", gross),
		)
		return
	}
	e.MarkupPercent = pct
	e.Price = pricing.PriceWithMarkup(e.OriginalPrice, pct)
	if e.Price != gross {
		m.log.Debug("requested price adjusted to rounded markup",
			logger.String("entry_id", e.ID),
			logger.Float64("requested", gross),
			logger.Float64("price", e.Price),
		)
	}
}

// UpdateFields applies a partial update to the entry with id.
func (m *Manager) UpdateFields(id string, u FieldUpdate) (*domain.Entry, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}

	return m.mutateOne(id, func(e *domain.Entry) (bool, error) {
		before := e.Clone()
		oldPrice := e.Price

		if u.VAT != nil && *u.VAT != e.VAT {
			e.VAT = *u.VAT
			if net := netBasis(e); net > 0 {
				e.OriginalPrice = pricing.GrossFromNet(net, e.VAT)
				if u.Price == nil && u.MarkupPercent == nil {
					e.Price = pricing.PriceWithMarkup(e.OriginalPrice, e.MarkupPercent)
				}
			}
		}

		switch {
		case u.Price != nil:
			m.repriceFromGross(e, *u.Price)
		case u.MarkupPercent != nil:
			e.MarkupPercent = *u.MarkupPercent
			if e.OriginalPrice > 0 {
				e.Price = pricing.PriceWithMarkup(e.OriginalPrice, e.MarkupPercent)
			} else {
				m.log.Info("markup stored without repricing, base price unknown",
					logger.String("entry_id", e.ID),
					logger.Float64("markup_percent", e.MarkupPercent),
				)
			}
		}
		if e.Price != oldPrice && (e.DiscountedPrice == 0 || e.DiscountedPrice == oldPrice) {
			e.DiscountedPrice = e.Price
		}

		if u.Stock != nil {
			e.Stock = *u.Stock
		}
		if u.DeliveryTime != nil {
			e.DeliveryTime = strings.TrimSpace(*u.DeliveryTime)
		}
		if u.DeliveryCost != nil {
			e.DeliveryCost = domain.FloatPtr(*u.DeliveryCost)
		}
		if u.Name != nil {
			e.NameOverride = strings.TrimSpace(*u.Name)
			e.Name = e.NameOverride
		}
		if u.Category != nil {
			e.CategoryOverride = strings.TrimSpace(*u.Category)
			e.Category = e.CategoryOverride
			if !e.FromFeed() {
				e.CategoryPath = []string{e.Category}
			}
		}

		return !before.SameContent(e), nil
	})
}

func (u FieldUpdate) validate() error {
	if err := checkAmount("price", u.Price); err != nil {
		return err
	}
	if u.MarkupPercent != nil {
		if err := checkMarkup(*u.MarkupPercent); err != nil {
			return err
		}
	}
	if u.VAT != nil && (*u.VAT < 0 || *u.VAT > 100) {
		return invalid("vat %d out of range", *u.VAT)
	}
	if u.Stock != nil && *u.Stock < 0 {
		return invalid("stock %d is negative", *u.Stock)
	}
	if err := checkAmount("delivery cost", u.DeliveryCost); err != nil {
		return err
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return invalid("name must not be empty")
	}
	if u.Category != nil && strings.TrimSpace(*u.Category) == "" {
		return invalid("category must not be empty")
	}
	return nil
}

// netBasis is the net price the base price derives from, or 0 when unknown.
func netBasis(e *domain.Entry) float64 {
	if e.PriceNetXML != nil && *e.PriceNetXML > 0 {
		return *e.PriceNetXML
	}
	if e.PriceNetCost != nil && *e.PriceNetCost > 0 {
		return *e.PriceNetCost
	}
	return 0
}

// ToggleAvailability flips the sale flag, or sets it to *explicit when given.
func (m *Manager) ToggleAvailability(id string, explicit *bool) (*domain.Entry, error) {
	return m.mutateOne(id, func(e *domain.Entry) (bool, error) {
		want := !e.AvailableForSale
		if explicit != nil {
			want = *explicit
		}
		if want == e.AvailableForSale {
			return false, nil
		}
		e.AvailableForSale = want
		return true, nil
	})
}

// UpdateDescription stores html as the description and puts the entry on sale.
func (m *Manager) UpdateDescription(id, html string) (*domain.Entry, error) {
	return m.mutateOne(id, func(e *domain.Entry) (bool, error) {
		if e.Description == html && e.AvailableForSale {
			return false, nil
		}
		e.Description = html
		e.AvailableForSale = true
		return true, nil
	})
}

// RemoveEntry deletes the entry with id from the catalog.
func (m *Manager) RemoveEntry(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.idx.Snapshot()
	pos := position(next, id)
	if pos < 0 {
		return notFound(id)
	}
	next = append(next[:pos], next[pos+1:]...)

	if err := m.commit(next, nil, []string{id}); err != nil {
		return err
	}
	m.log.Info("entry removed", logger.String("entry_id", id))
	return nil
}

// SetAvailability sets the sale flag on every listed id and returns how
// many entries changed. Unknown ids are ignored.
func (m *Manager) SetAvailability(ids []string, available bool) (int, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return m.setAvailabilityWhere(func(e *domain.Entry) bool {
		_, ok := want[e.ID]
		return ok
	}, available)
}

// SetAvailabilityByCategory sets the sale flag on every entry in category.
func (m *Manager) SetAvailabilityByCategory(category string, available bool) (int, error) {
	return m.setAvailabilityWhere(func(e *domain.Entry) bool {
		return inCategory(e, category)
	}, available)
}

// RestoreDescribedAvailability puts every entry with a description back on
// sale and returns how many changed.
func (m *Manager) RestoreDescribedAvailability() (int, error) {
	return m.setAvailabilityWhere(func(e *domain.Entry) bool {
		return strings.TrimSpace(e.Description) != ""
	}, true)
}

// ResetAvailability takes every entry off sale.
func (m *Manager) ResetAvailability() (int, error) {
	return m.setAvailabilityWhere(func(*domain.Entry) bool { return true }, false)
}

func (m *Manager) setAvailabilityWhere(match func(e *domain.Entry) bool, available bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.idx.Snapshot()
	stamp := m.stamp()
	var changed []domain.Entry
	for i := range next {
		if match(&next[i]) && next[i].AvailableForSale != available {
			next[i].AvailableForSale = available
			next[i].LastModified = stamp
			changed = append(changed, next[i])
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}

	if err := m.commit(next, changed, nil); err != nil {
		return 0, err
	}
	m.log.Info("availability updated", logger.Int("entries", len(changed)), logger.Bool("available", available))
	return len(changed), nil
}
