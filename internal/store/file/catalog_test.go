package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

func newTestStore(t *testing.T) *CatalogStore {
	t.Helper()
	return NewCatalogStore(filepath.Join(t.TempDir(), "products.json"), logger.New("error", false))
}

func sampleEntries() []domain.Entry {
	added := domain.NewFlexTime(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	return []domain.Entry{
		{
			ID:               "1",
			XMLID:            domain.StringPtr("100"),
			Name:             "Garden Hose",
			Category:         "Watering",
			CategoryPath:     []string{"Garden", "Watering"},
			Images:           []string{},
			PriceNetXML:      domain.FloatPtr(81.30),
			OriginalPrice:    100,
			MarkupPercent:    10,
			Price:            110,
			DiscountedPrice:  110,
			VAT:              23,
			Stock:            4,
			AvailableForSale: true,
			Description:      "<p>Flexible & durable</p>",
			AddedAt:          added,
			LastModified:     added,
		},
		{
			ID:            "2",
			Custom:        true,
			Name:          "Gift card",
			Category:      "Other",
			CategoryPath:  []string{"Other"},
			Images:        []string{},
			OriginalPrice: 50,
			Price:         50,
			VAT:           23,
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	entries := sampleEntries()

	require.NoError(t, s.Save(entries))

	loaded, src := s.LoadWithSource()
	assert.Equal(t, SourcePrimary, src)
	assert.Equal(t, entries, loaded)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<p>Flexible & durable</p>", "html is not escaped")

	require.NoError(t, s.Save(loaded))
	again, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, raw, again, "save(load()) is a content no-op")
}

func TestLoadMissingIsEmpty(t *testing.T) {
	s := newTestStore(t)

	entries, src := s.LoadWithSource()
	assert.Equal(t, SourceEmpty, src)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestSaveRotatesBackup(t *testing.T) {
	s := newTestStore(t)
	first := sampleEntries()
	second := sampleEntries()[:1]

	require.NoError(t, s.Save(first))
	_, err := os.Stat(s.BackupPath())
	assert.ErrorIs(t, err, os.ErrNotExist, "no backup before the second save")

	require.NoError(t, s.Save(second))

	raw, err := os.ReadFile(s.BackupPath())
	require.NoError(t, err)
	backup, err := decodeCatalog(raw)
	require.NoError(t, err)
	assert.Len(t, backup, 2)
	assert.Len(t, s.Load(), 1)
}

func TestLoadRecoversFromBackup(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleEntries()))
	require.NoError(t, s.Save(sampleEntries()))

	require.NoError(t, os.WriteFile(s.Path(), []byte(`[{"id": "1", "name": `), 0o644))

	entries, src := s.LoadWithSource()
	assert.Equal(t, SourceBackup, src)
	assert.Len(t, entries, 2)

	healed, err := readCatalog(s.Path())
	require.NoError(t, err, "primary is repaired from backup")
	assert.Len(t, healed, 2)
}

func TestLoadRecoversMissingPrimary(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleEntries()))
	require.NoError(t, s.Save(sampleEntries()))
	require.NoError(t, os.Remove(s.Path()))

	entries, src := s.LoadWithSource()
	assert.Equal(t, SourceBackup, src)
	assert.Len(t, entries, 2)
}

func TestLoadBothCorrupt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(s.BackupPath(), []byte(""), 0o644))

	entries, src := s.LoadWithSource()
	assert.Equal(t, SourceEmpty, src)
	assert.Empty(t, entries)
}

func TestSaveFailureLeavesPrimary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	// A non-empty directory at the primary path makes the final rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o755))

	s := NewCatalogStore(path, logger.New("error", false))
	err := s.Save(sampleEntries())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files are cleaned up")
}

func TestConcurrentSaves(t *testing.T) {
	s := newTestStore(t)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			snapshot := make([]domain.Entry, 0, n+1)
			for j := 0; j <= n; j++ {
				snapshot = append(snapshot, domain.Entry{
					ID:           fmt.Sprint(j + 1),
					Name:         fmt.Sprintf("writer-%d", n),
					CategoryPath: []string{},
					Images:       []string{},
				})
			}
			assert.NoError(t, s.Save(snapshot))
		}(i)
	}
	wg.Wait()

	entries, err := readCatalog(s.Path())
	require.NoError(t, err, "final file is complete")
	require.NotEmpty(t, entries)
	writer := entries[0].Name
	for _, e := range entries {
		assert.Equal(t, writer, e.Name, "final file holds exactly one snapshot")
	}

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLoadLegacyFormat(t *testing.T) {
	s := newTestStore(t)
	legacy := `[
	  {"id": 7, "xml_id": 1234, "name": "Old", "category": "Tools", "price": 12.5,
	   "original_price": 10, "markup_percent": 25, "added_at": "2024-05-01 12:30:00"},
	  {"id": "8", "xml_id": null, "name": "Manual", "added_at": 1714566600}
	]`
	require.NoError(t, os.WriteFile(s.Path(), []byte(legacy), 0o644))

	entries := s.Load()
	require.Len(t, entries, 2)

	assert.Equal(t, "7", entries[0].ID)
	require.NotNil(t, entries[0].XMLID)
	assert.Equal(t, "1234", *entries[0].XMLID)
	assert.Equal(t, []string{"Tools"}, entries[0].CategoryPath)
	assert.Equal(t, 2024, entries[0].AddedAt.Year())
	assert.Equal(t, 30, entries[0].AddedAt.Minute())

	assert.Equal(t, "8", entries[1].ID)
	assert.Nil(t, entries[1].XMLID)
	assert.Equal(t, int64(1714566600), entries[1].AddedAt.Unix())
}
