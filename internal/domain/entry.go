package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// UncategorizedLabel is used when a product carries no category information.
const UncategorizedLabel = "Uncategorized"

// Entry is one persisted catalog product.
//
// Feed-sourced entries carry XMLID; manual entries leave it nil and set Custom.
// Price fields obey: Price == round(OriginalPrice * (1 + MarkupPercent/100), 2)
// whenever OriginalPrice is known.
type Entry struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is stable across restarts and unique catalog-wide.
	ID string `json:"id"`

	// XMLID links the entry to its feed offer. Nil for manual entries.
	XMLID *string `json:"xml_id"`

	UUID   string `json:"uuid,omitempty"`
	Custom bool   `json:"custom,omitempty"`

	// ─────────────────────────────
	// Descriptive (refreshed by ingestion)
	// ─────────────────────────────

	Name         string   `json:"name"`
	Category     string   `json:"category"`
	CategoryPath []string `json:"category_path"`
	EAN          string   `json:"EAN,omitempty"`
	Producer     string   `json:"producer,omitempty"`
	URL          string   `json:"url,omitempty"`
	Image        *string  `json:"image"`
	Images       []string `json:"images"`

	// ─────────────────────────────
	// Commercial
	// ─────────────────────────────

	// PriceNetXML is the supplier net price taken from the feed.
	PriceNetXML *float64 `json:"price_net_xml,omitempty"`
	// PriceNetCost is the net purchase cost entered for a manual entry.
	PriceNetCost *float64 `json:"price_net_cost,omitempty"`
	// OriginalPrice is the base gross price before markup.
	OriginalPrice   float64 `json:"original_price"`
	MarkupPercent   float64 `json:"markup_percent"`
	Price           float64 `json:"price"`
	DiscountedPrice float64 `json:"discounted_price"`
	VAT             int     `json:"vat"`
	Stock           int     `json:"stock"`

	// ─────────────────────────────
	// Curated (survives re-ingestion)
	// ─────────────────────────────

	AvailableForSale bool     `json:"available_for_sale"`
	Description      string   `json:"description,omitempty"`
	DeliveryTime     string   `json:"delivery_time,omitempty"`
	DeliveryCost     *float64 `json:"delivery_cost,omitempty"`
	NameOverride     string   `json:"name_override,omitempty"`
	CategoryOverride string   `json:"category_override,omitempty"`

	// ─────────────────────────────
	// Lifecycle
	// ─────────────────────────────

	AddedAt      FlexTime `json:"added_at"`
	LastModified FlexTime `json:"last_modified"`
}

// NormalizeXMLID trims whitespace so feed ids compare reliably.
func NormalizeXMLID(id string) string {
	return strings.TrimSpace(id)
}

// FeedID returns the normalized feed id, or "" for manual entries.
func (e *Entry) FeedID() string {
	if e.XMLID == nil {
		return ""
	}
	return NormalizeXMLID(*e.XMLID)
}

// FromFeed reports whether the entry originates from the feed.
func (e *Entry) FromFeed() bool {
	return e.FeedID() != ""
}

// Clone returns a deep copy safe to mutate independently.
func (e Entry) Clone() Entry {
	c := e
	c.XMLID = cloneString(e.XMLID)
	c.Image = cloneString(e.Image)
	c.PriceNetXML = cloneFloat(e.PriceNetXML)
	c.PriceNetCost = cloneFloat(e.PriceNetCost)
	c.DeliveryCost = cloneFloat(e.DeliveryCost)
	c.CategoryPath = cloneStrings(e.CategoryPath)
	c.Images = cloneStrings(e.Images)
	return c
}

// SameContent compares two entries ignoring LastModified. Nil and empty
// slices are treated alike.
func (e *Entry) SameContent(o *Entry) bool {
	x, y := e.Clone(), o.Clone()
	for _, c := range []*Entry{&x, &y} {
		c.LastModified = FlexTime{}
		c.AddedAt = NewFlexTime(c.AddedAt.UTC().Round(0))
		if len(c.CategoryPath) == 0 {
			c.CategoryPath = nil
		}
		if len(c.Images) == 0 {
			c.Images = nil
		}
	}
	return reflect.DeepEqual(x, y)
}

// ApplyOverrides replaces feed name/category with the curated overrides when set.
func (e *Entry) ApplyOverrides() {
	if e.NameOverride != "" {
		e.Name = e.NameOverride
	}
	if e.CategoryOverride != "" {
		e.Category = e.CategoryOverride
	}
}

// UnmarshalJSON accepts legacy files where ids were numbers and fills
// defaults for fields older files never wrote.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type alias Entry
	aux := struct {
		*alias
		ID    json.RawMessage `json:"id"`
		XMLID json.RawMessage `json:"xml_id"`
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := flexString(aux.ID)
	if err != nil {
		return fmt.Errorf("entry id: %w", err)
	}
	e.ID = id

	xmlID, err := flexString(aux.XMLID)
	if err != nil {
		return fmt.Errorf("entry xml_id: %w", err)
	}
	if xmlID != "" {
		e.XMLID = &xmlID
	} else {
		e.XMLID = nil
	}

	if len(e.CategoryPath) == 0 && e.Category != "" {
		e.CategoryPath = []string{e.Category}
	}
	if e.Images == nil {
		e.Images = []string{}
	}
	if e.Image == nil && len(e.Images) > 0 {
		first := e.Images[0]
		e.Image = &first
	}
	return nil
}

// flexString decodes a JSON string or number into a string. null yields "".
func flexString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// StringPtr and FloatPtr are small helpers for optional fields.
func StringPtr(s string) *string { return &s }

func FloatPtr(f float64) *float64 { return &f }
