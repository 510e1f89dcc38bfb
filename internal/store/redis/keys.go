package redis

import (
	"fmt"
	"strings"
)

// Keys builds mirror key names under a configurable namespace.
type Keys struct {
	prefix string
}

// NewKeys returns a key builder; an empty prefix defaults to "stockroom".
func NewKeys(prefix string) Keys {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "stockroom"
	}
	return Keys{prefix: prefix}
}

// Price returns the hash key of one entry.
func (k Keys) Price(id string) string {
	return k.pricePrefix() + id
}

// All returns the set holding every mirrored entry id.
func (k Keys) All() string {
	return k.prefix + ":prices:all"
}

// Synced returns the key holding the last full sync timestamp.
func (k Keys) Synced() string {
	return k.prefix + ":prices:synced_at"
}

// ExtractID extracts the entry id from a price key.
func (k Keys) ExtractID(key string) (string, error) {
	p := k.pricePrefix()
	if len(key) <= len(p) || !strings.HasPrefix(key, p) {
		return "", fmt.Errorf("invalid price key: %s", key)
	}
	return key[len(p):], nil
}

func (k Keys) pricePrefix() string {
	return k.prefix + ":price:"
}
