// Package file persists the catalog and its side files as JSON documents
// on local disk.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

// Source tells where a load found its data.
type Source int

const (
	SourceEmpty Source = iota
	SourcePrimary
	SourceBackup
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceBackup:
		return "backup"
	default:
		return "empty"
	}
}

// CatalogStore reads and writes the catalog JSON array. All disk access of
// one store instance is serialized by its mutex; saves are atomic renames.
type CatalogStore struct {
	path string
	mu   sync.Mutex
	log  logger.Logger
}

func NewCatalogStore(path string, log logger.Logger) *CatalogStore {
	return &CatalogStore{
		path: path,
		log:  log.With(logger.String("store", "catalog")),
	}
}

func (s *CatalogStore) Path() string       { return s.path }
func (s *CatalogStore) BackupPath() string { return s.path + backupSuffix }

// Load returns the persisted catalog. It never fails: a corrupt primary is
// recovered from the backup, and with neither readable the catalog is empty.
func (s *CatalogStore) Load() []domain.Entry {
	entries, _ := s.LoadWithSource()
	return entries
}

// LoadWithSource is Load that also reports which file was used.
func (s *CatalogStore) LoadWithSource() ([]domain.Entry, Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := readCatalog(s.path)
	if err == nil {
		return entries, SourcePrimary
	}
	primaryErr := err
	if !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("catalog primary unreadable, trying backup",
			logger.String("path", s.path),
			logger.Error(err),
		)
	}

	raw, err := os.ReadFile(s.BackupPath())
	if err == nil {
		entries, err = decodeCatalog(raw)
	}
	if err != nil {
		if errors.Is(primaryErr, os.ErrNotExist) && errors.Is(err, os.ErrNotExist) {
			s.log.Info("no catalog on disk, starting empty", logger.String("path", s.path))
		} else {
			s.log.Warn("catalog and backup unreadable, starting empty",
				logger.String("path", s.path),
				logger.Error(err),
			)
		}
		return []domain.Entry{}, SourceEmpty
	}

	// Self-heal: put the backup content back in place of the broken primary.
	if err := writeAtomic(s.path, raw, false, s.log); err != nil {
		s.log.Error("restoring catalog from backup failed", logger.String("path", s.path), logger.Error(err))
	} else {
		s.log.Warn("catalog restored from backup",
			logger.String("path", s.path),
			logger.Int("entries", len(entries)),
		)
	}
	return entries, SourceBackup
}

// Save atomically replaces the catalog with entries, keeping the previous
// file as backup. On error the primary file is left as it was.
func (s *CatalogStore) Save(entries []domain.Entry) error {
	if entries == nil {
		entries = []domain.Entry{}
	}
	data, err := encodeJSON(entries)
	if err != nil {
		return fmt.Errorf("encode catalog: %w: %w", domain.ErrPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.path, data, true, s.log); err != nil {
		s.log.Error("catalog save failed", logger.String("path", s.path), logger.Error(err))
		return err
	}
	s.log.Debug("catalog saved", logger.Int("entries", len(entries)))
	return nil
}

func readCatalog(path string) ([]domain.Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeCatalog(raw)
}

func decodeCatalog(raw []byte) ([]domain.Entry, error) {
	if len(raw) == 0 {
		return nil, errors.New("catalog file is empty")
	}
	var entries []domain.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, nil
}
