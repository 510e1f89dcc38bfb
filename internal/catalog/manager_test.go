package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/feed"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
	"github.com/MrSnakeDoc/stockroom/internal/pricing"
	"github.com/MrSnakeDoc/stockroom/internal/store/file"
)

type testOffer struct {
	id       string
	name     string
	category string
	net      string
	stock    int
}

func feedXML(offers ...testOffer) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><catalog><offers>`)
	for _, o := range offers {
		fmt.Fprintf(&b, `<offer><id>%s</id><name>%s</name><category>%s</category><price>%s</price><vat>23</vat><stock>%d</stock></offer>`,
			o.id, o.name, o.category, o.net, o.stock)
	}
	b.WriteString(`</offers></catalog>`)
	return b.String()
}

var defaultOffers = []testOffer{
	{"100", "Garden Hose", "Garden &gt; Watering", "100.00", 5},
	{"200", "Steel Rake", "Garden &gt; Tools", "81.30", 2},
	{"300", "Desk Lamp", "Home &gt; Lighting", "20.00", 0},
}

type harness struct {
	m        *Manager
	feedPath string
	store    *file.CatalogStore
	sink     *recordingSink
	now      time.Time
}

func (h *harness) writeFeed(t *testing.T, offers ...testOffer) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.feedPath, []byte(feedXML(offers...)), 0o644))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	log := logger.New("error", false)

	h := &harness{
		feedPath: filepath.Join(dir, "products_latest.xml"),
		store:    file.NewCatalogStore(filepath.Join(dir, "products.json"), log),
		sink:     &recordingSink{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.writeFeed(t, defaultOffers...)

	h.m = New(Deps{
		Store:    h.store,
		Feed:     feed.NewParser(h.feedPath, feed.Options{DefaultVAT: 23}, log),
		Lists:    file.NewListStore(filepath.Join(dir, "product_lists.json"), log),
		Featured: file.NewFeaturedStore(filepath.Join(dir, "featured_categories.json"), log),
		Sink:     h.sink,
	}, Options{
		RetainManual: true,
		DefaultVAT:   23,
		Now:          func() time.Time { return h.now },
	}, log)
	h.m.Load()
	return h
}

func (h *harness) ingest(t *testing.T) *IngestReport {
	t.Helper()
	report, err := h.m.Ingest("")
	require.NoError(t, err)
	return report
}

func (h *harness) byXMLID(t *testing.T, xmlID string) domain.Entry {
	t.Helper()
	e, ok := h.m.idx.GetByXMLID(xmlID)
	require.True(t, ok, "xml_id %s", xmlID)
	return e
}

type recordingSink struct {
	mu        sync.Mutex
	published []string
	removed   []string
}

func (s *recordingSink) Publish(_ context.Context, entries []domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.published = append(s.published, e.ID)
	}
	return nil
}

func (s *recordingSink) Remove(_ context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, ids...)
	return nil
}

type failingStore struct {
	entries []domain.Entry
}

func (s *failingStore) Load() []domain.Entry { return s.entries }

func (s *failingStore) Save([]domain.Entry) error {
	return fmt.Errorf("disk full: %w", domain.ErrPersistence)
}

func ptr[T any](v T) *T { return &v }

func TestIngest(t *testing.T) {
	h := newHarness(t)
	assert.Nil(t, h.m.LastIngest())

	report := h.ingest(t)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Parsed)
	assert.Equal(t, 3, report.Added)
	assert.Equal(t, 3, report.Total)

	hose := h.byXMLID(t, "100")
	assert.False(t, hose.AvailableForSale)
	assert.Equal(t, 123.0, hose.OriginalPrice)
	assert.Equal(t, 123.0, hose.Price)
	assert.Equal(t, []string{"Garden", "Watering"}, hose.CategoryPath)

	onDisk := h.store.Load()
	assert.Len(t, onDisk, 3)
	assert.Equal(t, report.RunID, h.m.LastIngest().RunID)
	assert.Len(t, h.sink.published, 3)
}

func TestIngestPreservesCuratedState(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)

	hose := h.byXMLID(t, "100")
	_, err := h.m.UpdateFields(hose.ID, FieldUpdate{MarkupPercent: ptr(15.0)})
	require.NoError(t, err)
	_, err = h.m.UpdateDescription(hose.ID, "<p>Best hose</p>")
	require.NoError(t, err)

	h.writeFeed(t, testOffer{"100", "Garden Hose v2", "Garden &gt; Watering", "120.00", 9})
	report := h.ingest(t)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 2, report.Vanished)

	got := h.byXMLID(t, "100")
	assert.Equal(t, hose.ID, got.ID)
	assert.True(t, got.AvailableForSale)
	assert.Equal(t, "<p>Best hose</p>", got.Description)
	assert.Equal(t, 15.0, got.MarkupPercent)
	assert.Equal(t, 147.60, got.OriginalPrice)
	assert.Equal(t, 169.74, got.Price)
	assert.Equal(t, "Garden Hose v2", got.Name)
	assert.Equal(t, 9, got.Stock)

	rake := h.byXMLID(t, "200")
	assert.Zero(t, rake.Stock, "vanished offers stay in the catalog without stock")
}

func TestIngestIdempotent(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	first := h.m.All(true)

	h.now = h.now.Add(time.Hour)
	report := h.ingest(t)

	assert.Equal(t, 3, report.Unchanged)
	assert.Equal(t, first, h.m.All(true))
}

func TestIngestFeedErrorsLeaveCatalog(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	before := h.m.All(true)

	require.NoError(t, os.WriteFile(h.feedPath, []byte("<catalog><offer>"), 0o644))
	_, err := h.m.Ingest("")
	assert.ErrorIs(t, err, domain.ErrFeedMalformed)
	assert.True(t, IsFeedError(err))
	assert.Equal(t, before, h.m.All(true))

	require.NoError(t, os.Remove(h.feedPath))
	_, err = h.m.Ingest("")
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
	assert.Equal(t, before, h.store.Load())
}

func TestIngestRetainsManualEntries(t *testing.T) {
	h := newHarness(t)
	manual, err := h.m.AddManual(ManualEntry{Name: "Gift card", Price: ptr(50.0)})
	require.NoError(t, err)

	h.ingest(t)
	h.ingest(t)

	got, err := h.m.Get(manual.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Gift card", got.Name)
	assert.Equal(t, 4, len(h.m.All(true)))
}

func TestAddFromFeed(t *testing.T) {
	h := newHarness(t)

	e, err := h.m.AddFromFeed("200", 10, true)
	require.NoError(t, err)
	assert.Equal(t, "1", e.ID)
	assert.Equal(t, 100.0, e.OriginalPrice)
	assert.Equal(t, 110.0, e.Price)
	assert.True(t, e.AvailableForSale)

	again, err := h.m.AddFromFeed(" 200 ", 50, false)
	require.NoError(t, err)
	assert.Equal(t, e.ID, again.ID, "existing entry is returned")
	assert.Equal(t, 10.0, again.MarkupPercent)

	count := 0
	for _, x := range h.m.All(true) {
		if x.FeedID() == "200" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	_, err = h.m.AddFromFeed("999", 0, false)
	assert.ErrorIs(t, err, domain.ErrFeedEntryNotFound)
}

func TestAddManualPricing(t *testing.T) {
	tests := []struct {
		name         string
		in           ManualEntry
		wantOriginal float64
		wantMarkup   float64
		wantPrice    float64
	}{
		{"cost and markup", ManualEntry{Name: "a", NetCost: ptr(81.30), MarkupPercent: ptr(10.0)}, 100, 10, 110},
		{"cost and gross price", ManualEntry{Name: "b", NetCost: ptr(81.30), Price: ptr(125.0)}, 100, 25, 125},
		{"cost only", ManualEntry{Name: "c", NetCost: ptr(10.0), VAT: ptr(8)}, 10.8, 0, 10.8},
		{"gross price only", ManualEntry{Name: "d", Price: ptr(49.99)}, 49.99, 0, 49.99},
		{"no price", ManualEntry{Name: "e"}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			e, err := h.m.AddManual(tt.in)
			require.NoError(t, err)

			assert.True(t, e.Custom)
			assert.Nil(t, e.XMLID)
			assert.True(t, e.AvailableForSale)
			assert.Equal(t, tt.wantOriginal, e.OriginalPrice)
			assert.Equal(t, tt.wantMarkup, e.MarkupPercent)
			assert.Equal(t, tt.wantPrice, e.Price)
			assert.Equal(t, e.Price, e.DiscountedPrice)
			assert.Equal(t, domain.UncategorizedLabel, e.Category)
		})
	}
}

func TestAddManualValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.AddManual(ManualEntry{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.m.AddManual(ManualEntry{Name: "x", Price: ptr(-1.0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	e, err := h.m.AddManual(ManualEntry{Name: "hidden", AvailableForSale: ptr(false), Image: "https://img/x.jpg"})
	require.NoError(t, err)
	assert.False(t, e.AvailableForSale)
	require.NotNil(t, e.Image)
	assert.Equal(t, []string{"https://img/x.jpg"}, e.Images)
}

func TestFailedSaveKeepsMemory(t *testing.T) {
	existing := []domain.Entry{{ID: "1", Name: "kept", AvailableForSale: true}}
	m := New(Deps{Store: &failingStore{entries: existing}}, Options{}, logger.New("error", false))
	m.Load()

	_, err := m.AddManual(ManualEntry{Name: "new", Price: ptr(5.0)})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Len(t, m.All(true), 1)

	_, err = m.ToggleAvailability("1", nil)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	got, err := m.Get("1", true)
	require.NoError(t, err)
	assert.True(t, got.AvailableForSale)
}

func TestUpdateFields(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	id := h.byXMLID(t, "200").ID // original 100.00

	e, err := h.m.UpdateFields(id, FieldUpdate{MarkupPercent: ptr(10.0)})
	require.NoError(t, err)
	assert.Equal(t, 110.0, e.Price)
	assert.Equal(t, 110.0, e.DiscountedPrice)

	e, err = h.m.UpdateFields(id, FieldUpdate{Price: ptr(125.0)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, e.MarkupPercent)
	assert.Equal(t, 125.0, e.Price)
	assert.Equal(t, 125.0, e.DiscountedPrice)

	e, err = h.m.UpdateFields(id, FieldUpdate{Price: ptr(150.0), MarkupPercent: ptr(5.0)})
	require.NoError(t, err)
	assert.Equal(t, 50.0, e.MarkupPercent, "price wins over markup")
	assert.Equal(t, 150.0, e.Price)

	e, err = h.m.UpdateFields(id, FieldUpdate{VAT: ptr(8)})
	require.NoError(t, err)
	assert.Equal(t, 87.80, e.OriginalPrice)
	assert.Equal(t, pricing.PriceWithMarkup(87.80, 50), e.Price)

	e, err = h.m.UpdateFields(id, FieldUpdate{
		Stock:        ptr(3),
		DeliveryTime: ptr("24h"),
		DeliveryCost: ptr(12.5),
		Name:         ptr("Premium Rake"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, e.Stock)
	assert.Equal(t, "24h", e.DeliveryTime)
	assert.Equal(t, "Premium Rake", e.Name)
	assert.Equal(t, "Premium Rake", e.NameOverride)

	_, err = h.m.UpdateFields(id, FieldUpdate{Stock: ptr(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.m.UpdateFields("nope", FieldUpdate{Stock: ptr(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateFieldsWithoutBasePrice(t *testing.T) {
	h := newHarness(t)
	e, err := h.m.AddManual(ManualEntry{Name: "free sample"})
	require.NoError(t, err)

	got, err := h.m.UpdateFields(e.ID, FieldUpdate{MarkupPercent: ptr(30.0)})
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.MarkupPercent)
	assert.Zero(t, got.Price)

	got, err = h.m.UpdateFields(e.ID, FieldUpdate{Price: ptr(12.0)})
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.OriginalPrice)
	assert.Zero(t, got.MarkupPercent)
	assert.Equal(t, 12.0, got.Price)
}

func TestPriceInvariantAfterUpdates(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	id := h.byXMLID(t, "100").ID

	for _, p := range []float64{150, 133.33, 99.99, 123.45} {
		e, err := h.m.UpdateFields(id, FieldUpdate{Price: ptr(p)})
		require.NoError(t, err)
		assert.Equal(t, pricing.PriceWithMarkup(e.OriginalPrice, e.MarkupPercent), e.Price)
	}
}

func TestToggleAvailability(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	e := h.byXMLID(t, "100")
	price := e.Price

	got, err := h.m.ToggleAvailability(e.ID, nil)
	require.NoError(t, err)
	assert.True(t, got.AvailableForSale)
	assert.Equal(t, price, got.Price)

	got, err = h.m.ToggleAvailability(e.ID, ptr(true))
	require.NoError(t, err)
	assert.True(t, got.AvailableForSale)

	got, err = h.m.ToggleAvailability(e.ID, nil)
	require.NoError(t, err)
	assert.False(t, got.AvailableForSale)

	_, err = h.m.Get(e.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateDescriptionForcesAvailability(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	e := h.byXMLID(t, "300")

	got, err := h.m.UpdateDescription(e.ID, "<b>bright</b>")
	require.NoError(t, err)
	assert.True(t, got.AvailableForSale)
	assert.Equal(t, "<b>bright</b>", got.Description)
}

func TestRemoveEntry(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	e := h.byXMLID(t, "100")

	require.NoError(t, h.m.RemoveEntry(e.ID))
	_, err := h.m.Get(e.ID, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, h.sink.removed, e.ID)
	assert.ErrorIs(t, h.m.RemoveEntry(e.ID), domain.ErrNotFound)
}

func TestAvailabilityBulk(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)

	n, err := h.m.SetAvailabilityByCategory("Garden", true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, h.m.Published(), 2)

	n, err = h.m.SetAvailability([]string{h.byXMLID(t, "300").ID, "missing"}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = h.m.ResetAvailability()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, h.m.Published())

	n, err = h.m.ResetAvailability()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecomputeFromFeed(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	hose := h.byXMLID(t, "100")
	rake := h.byXMLID(t, "200")
	_, err := h.m.UpdateFields(hose.ID, FieldUpdate{MarkupPercent: ptr(15.0)})
	require.NoError(t, err)
	manual, err := h.m.AddManual(ManualEntry{Name: "card", Price: ptr(10.0)})
	require.NoError(t, err)

	h.writeFeed(t,
		testOffer{"100", "Garden Hose", "Garden &gt; Watering", "120.00", 5},
		testOffer{"200", "Steel Rake", "Garden &gt; Tools", "90.00", 2},
	)

	updated, failed, err := h.m.RecomputeAllFromFeed()
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Zero(t, failed)

	published := len(h.sink.published)
	updated, _, err = h.m.RecomputeAllFromFeed()
	require.NoError(t, err)
	assert.Equal(t, 1, updated, "unchanged entries still count as recomputed")
	assert.Len(t, h.sink.published, published, "nothing changed, nothing published")

	got := h.byXMLID(t, "100")
	assert.Equal(t, 147.60, got.OriginalPrice)
	assert.Equal(t, 169.74, got.Price)
	assert.Equal(t, rake.Price, h.byXMLID(t, "200").Price, "entries without markup are skipped")

	single, err := h.m.RecomputePriceFromFeed(rake.ID)
	require.NoError(t, err)
	assert.Equal(t, 110.70, single.OriginalPrice)

	_, err = h.m.RecomputePriceFromFeed(manual.ID)
	assert.ErrorIs(t, err, domain.ErrNotFeedSourced)
}

func TestQueries(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	_, err := h.m.SetAvailabilityByCategory("Tools", true)
	require.NoError(t, err)

	assert.Len(t, h.m.FindByText("rake", false), 1)
	assert.Empty(t, h.m.FindByText("hose", false))
	assert.Len(t, h.m.FindByText("HOSE", true), 1)
	assert.Len(t, h.m.FindByText(" ", true), 3, "blank query matches everything")
	assert.Len(t, h.m.FindByText("", false), 1)

	assert.Len(t, h.m.ByCategory("Garden", true), 2)
	assert.Len(t, h.m.ByCategory("Garden", false), 1)
	assert.Equal(t, []string{"Lighting", "Tools", "Watering"}, h.m.Categories())
	assert.Equal(t, []string{"Garden", "Home"}, h.m.MainCategories())

	tree := h.m.CategoryTree()
	require.Contains(t, tree, "Garden")
	assert.Contains(t, tree["Garden"], "Tools")
	assert.Contains(t, tree["Garden"], "Watering")
	assert.Empty(t, tree["Home"]["Lighting"])

	total, available := h.m.Count()
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, available)
}

func TestRecent(t *testing.T) {
	h := newHarness(t)
	base := h.now

	for i, name := range []string{"old", "mid", "new"} {
		h.now = base.Add(time.Duration(i*10) * 24 * time.Hour)
		_, err := h.m.AddManual(ManualEntry{Name: name})
		require.NoError(t, err)
	}

	recent := h.m.Recent(2, 0)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].Name)
	assert.Equal(t, "mid", recent[1].Name)

	recent = h.m.Recent(10, 5)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].Name)
}

func TestSearchFeed(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.AddFromFeed("100", 0, false)
	require.NoError(t, err)

	found, err := h.m.SearchFeed("garden", feed.FieldAny)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100", found[0].ID)
	assert.True(t, found[0].InShop)

	found, err = h.m.SearchFeed("rake", feed.FieldName)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.False(t, found[0].InShop)

	entries, err := h.m.FeedEntriesByIDs([]string{"300", "999", "100"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "300", entries[0].ID)
	assert.True(t, entries[1].InShop)
}

func TestProductLists(t *testing.T) {
	h := newHarness(t)

	l, err := h.m.SaveList(domain.ProductList{
		Name:          "Spring",
		ProductIDs:    []string{"100", " 200", "100", "999"},
		MarkupPercent: 20,
		ItemMarkups:   map[string]float64{"200": 35},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.ID)
	assert.Equal(t, []string{"100", "200", "999"}, l.ProductIDs)

	second, err := h.m.SaveList(domain.ProductList{Name: "Other", ProductIDs: []string{"300"}})
	require.NoError(t, err)
	assert.Equal(t, 2, second.ID)

	_, err = h.m.AddFromFeed("100", 0, false)
	require.NoError(t, err)

	imp, err := h.m.AddFromList(l.ID)
	require.NoError(t, err)
	require.Len(t, imp.Added, 1)
	assert.Equal(t, []string{"100"}, imp.Existing)
	assert.Equal(t, []string{"999"}, imp.Missing)

	rake := h.byXMLID(t, "200")
	assert.True(t, rake.AvailableForSale)
	assert.Equal(t, 35.0, rake.MarkupPercent)
	assert.Equal(t, 135.0, rake.Price)

	updated, err := h.m.UpdateList(l.ID, domain.ProductListPatch{Name: ptr("Summer"), MarkupPercent: ptr(5.0)})
	require.NoError(t, err)
	assert.Equal(t, "Summer", updated.Name)
	assert.Equal(t, 5.0, updated.MarkupPercent)

	require.NoError(t, h.m.DeleteList(l.ID))
	_, err = h.m.List(l.ID)
	assert.ErrorIs(t, err, domain.ErrListNotFound)
	assert.ErrorIs(t, h.m.DeleteList(l.ID), domain.ErrListNotFound)

	lists, err := h.m.Lists()
	require.NoError(t, err)
	assert.Len(t, lists, 1)

	_, err = h.m.SaveList(domain.ProductList{Name: "empty"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFeaturedCategories(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)

	assert.Equal(t, []string{"Garden", "Home"}, h.m.FeaturedCategories())

	saved, err := h.m.SaveFeaturedCategories([]string{"a", "b", " ", "c", "d", "e", "f", "g"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, saved)
	assert.Equal(t, saved, h.m.FeaturedCategories())
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	h := newHarness(t)
	var ids []string
	for i := 0; i < 20; i++ {
		e, err := h.m.AddManual(ManualEntry{Name: fmt.Sprintf("item %d", i), AvailableForSale: ptr(false)})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.m.ToggleAvailability(id, ptr(true))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Len(t, h.m.Published(), 20)
	onDisk := h.store.Load()
	for _, e := range onDisk {
		assert.True(t, e.AvailableForSale, "no update lost on disk: %s", e.ID)
	}
}

func TestLoadFromDisk(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)

	reopened := New(Deps{Store: h.store, Feed: feed.NewParser(h.feedPath, feed.Options{DefaultVAT: 23}, logger.New("error", false))},
		Options{RetainManual: true}, logger.New("error", false))
	assert.False(t, reopened.Loaded())
	assert.Equal(t, 3, reopened.Load())
	assert.True(t, reopened.Loaded())
	assert.Equal(t, h.m.All(true), reopened.All(true))
}

func TestIsFeedError(t *testing.T) {
	assert.False(t, IsFeedError(errors.New("x")))
	assert.True(t, IsFeedError(fmt.Errorf("wrap: %w", domain.ErrFeedUnavailable)))
}

func TestRestoreDescribedAvailability(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	hose := h.byXMLID(t, "100")
	_, err := h.m.UpdateDescription(hose.ID, "<p>Thirty metres</p>")
	require.NoError(t, err)
	_, err = h.m.AddManual(ManualEntry{Name: "card", Description: "Gift card"})
	require.NoError(t, err)

	_, err = h.m.ResetAvailability()
	require.NoError(t, err)
	require.Empty(t, h.m.Published())

	n, err := h.m.RestoreDescribedAvailability()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, h.byXMLID(t, "100").AvailableForSale)
	assert.False(t, h.byXMLID(t, "200").AvailableForSale, "no description, stays off sale")

	n, err = h.m.RestoreDescribedAvailability()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRejectsOutOfRangeNumbers(t *testing.T) {
	h := newHarness(t)
	h.ingest(t)
	hose := h.byXMLID(t, "100")

	bad := []float64{math.Inf(1), math.Inf(-1), math.NaN(), -100.01}
	for _, pct := range bad {
		_, err := h.m.UpdateFields(hose.ID, FieldUpdate{MarkupPercent: ptr(pct)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "markup %v", pct)

		_, err = h.m.AddManual(ManualEntry{Name: "x", NetCost: ptr(10.0), MarkupPercent: ptr(pct)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "manual markup %v", pct)

		_, err = h.m.AddFromFeed("200", pct, true)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "feed markup %v", pct)
	}

	for _, v := range []float64{math.Inf(1), math.NaN(), -1} {
		_, err := h.m.UpdateFields(hose.ID, FieldUpdate{Price: ptr(v)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "price %v", v)

		_, err = h.m.AddManual(ManualEntry{Name: "x", NetCost: ptr(v)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "net cost %v", v)

		_, err = h.m.AddManual(ManualEntry{Name: "x", Price: ptr(v)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "manual price %v", v)
	}

	total, _ := h.m.Count()
	assert.Equal(t, 3, total)
	assert.Equal(t, hose.Price, h.byXMLID(t, "100").Price)

	e, err := h.m.UpdateFields(hose.ID, FieldUpdate{MarkupPercent: ptr(-100.0)})
	require.NoError(t, err)
	assert.Zero(t, e.Price, "-100% is the floor")
}

func TestListMarkupKeysNormalized(t *testing.T) {
	h := newHarness(t)

	markups := map[string]float64{" 200 ": 35}
	l, err := h.m.SaveList(domain.ProductList{Name: "Spring", ProductIDs: []string{"200"}, ItemMarkups: markups})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"200": 35}, l.ItemMarkups)

	patch := map[string]float64{"200\t": 40}
	l, err = h.m.UpdateList(l.ID, domain.ProductListPatch{ItemMarkups: patch})
	require.NoError(t, err)
	patch["200"] = 99
	assert.Equal(t, map[string]float64{"200": 40}, l.ItemMarkups, "caller map is copied")

	_, err = h.m.AddFromList(l.ID)
	require.NoError(t, err)
	rake := h.byXMLID(t, "200")
	assert.Equal(t, 40.0, rake.MarkupPercent)
	assert.Equal(t, 140.0, rake.Price)

	_, err = h.m.SaveList(domain.ProductList{Name: "bad", ProductIDs: []string{"100"}, ItemMarkups: map[string]float64{"100": math.NaN()}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.m.UpdateList(l.ID, domain.ProductListPatch{MarkupPercent: ptr(-150.0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
