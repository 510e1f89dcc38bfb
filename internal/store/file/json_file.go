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

// JSONFile is a small side file holding one JSON document of type T.
type JSONFile[T any] struct {
	path string
	mu   sync.Mutex
	log  logger.Logger
}

func NewJSONFile[T any](path string, log logger.Logger) *JSONFile[T] {
	return &JSONFile[T]{path: path, log: log}
}

func (f *JSONFile[T]) Path() string { return f.path }

// Load decodes the file. found is false when the file does not exist.
func (f *JSONFile[T]) Load() (value T, found bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, true, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return value, true, nil
}

// Save atomically replaces the file with value.
func (f *JSONFile[T]) Save(value T) error {
	data, err := encodeJSON(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w: %w", f.path, domain.ErrPersistence, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return writeAtomic(f.path, data, false, f.log)
}

// ListStore holds the named product lists.
type ListStore = JSONFile[[]domain.ProductList]

// FeaturedStore holds the ordered featured category names.
type FeaturedStore = JSONFile[[]string]

func NewListStore(path string, log logger.Logger) *ListStore {
	return NewJSONFile[[]domain.ProductList](path, log.With(logger.String("store", "lists")))
}

func NewFeaturedStore(path string, log logger.Logger) *FeaturedStore {
	return NewJSONFile[[]string](path, log.With(logger.String("store", "featured")))
}
