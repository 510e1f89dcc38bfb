package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
)

// PriceRecord is the checkout view of one entry.
type PriceRecord struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DiscountedPrice float64 `json:"discounted_price"`
	VAT             int     `json:"vat"`
	Stock           int     `json:"stock"`
	Available       bool    `json:"available_for_sale"`
	UpdatedAt       int64   `json:"updated_at"`
}

// Mirror keeps a Redis copy of catalog prices for checkout.
type Mirror struct {
	client *redis.Client
	keys   Keys
	now    func() time.Time
}

// NewMirror creates a price mirror on client.
func NewMirror(client *redis.Client, prefix string) *Mirror {
	return &Mirror{
		client: client,
		keys:   NewKeys(prefix),
		now:    time.Now,
	}
}

func recordOf(e *domain.Entry, now time.Time) PriceRecord {
	return PriceRecord{
		ID:              e.ID,
		Name:            e.Name,
		Price:           e.Price,
		DiscountedPrice: e.DiscountedPrice,
		VAT:             e.VAT,
		Stock:           e.Stock,
		Available:       e.AvailableForSale,
		UpdatedAt:       now.Unix(),
	}
}

func (r PriceRecord) fields() map[string]any {
	return map[string]any{
		"name":             r.Name,
		"price":            strconv.FormatFloat(r.Price, 'f', 2, 64),
		"discounted_price": strconv.FormatFloat(r.DiscountedPrice, 'f', 2, 64),
		"vat":              r.VAT,
		"stock":            r.Stock,
		"available":        strconv.FormatBool(r.Available),
		"updated_at":       r.UpdatedAt,
	}
}

func recordFromHash(id string, h map[string]string) (*PriceRecord, error) {
	r := &PriceRecord{ID: id, Name: h["name"]}
	var err error
	if r.Price, err = strconv.ParseFloat(h["price"], 64); err != nil {
		return nil, fmt.Errorf("price of %s: %w", id, err)
	}
	if v := h["discounted_price"]; v != "" {
		if r.DiscountedPrice, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("discounted price of %s: %w", id, err)
		}
	}
	r.VAT, _ = strconv.Atoi(h["vat"])
	r.Stock, _ = strconv.Atoi(h["stock"])
	r.Available, _ = strconv.ParseBool(h["available"])
	r.UpdatedAt, _ = strconv.ParseInt(h["updated_at"], 10, 64)
	return r, nil
}

// Publish writes the price hashes of entries in a single pipeline.
func (m *Mirror) Publish(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := m.now()
	pipe := m.client.Pipeline()
	for i := range entries {
		rec := recordOf(&entries[i], now)
		pipe.HSet(ctx, m.keys.Price(rec.ID), rec.fields())
		pipe.SAdd(ctx, m.keys.All(), rec.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish %d prices: %w", len(entries), err)
	}
	return nil
}

// Remove deletes the price hashes of ids.
func (m *Mirror) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := m.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, m.keys.Price(id))
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe.SRem(ctx, m.keys.All(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove %d prices: %w", len(ids), err)
	}
	return nil
}

// Sync replaces the mirror with entries and drops ids no longer in the catalog.
// It returns how many stale ids were removed.
func (m *Mirror) Sync(ctx context.Context, entries []domain.Entry) (int, error) {
	known, err := m.client.SMembers(ctx, m.keys.All()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list mirrored ids: %w", err)
	}

	current := make(map[string]struct{}, len(entries))
	for i := range entries {
		current[entries[i].ID] = struct{}{}
	}
	var stale []string
	for _, id := range known {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}

	if err := m.Publish(ctx, entries); err != nil {
		return 0, err
	}
	if err := m.Remove(ctx, stale...); err != nil {
		return 0, err
	}
	if err := m.client.Set(ctx, m.keys.Synced(), m.now().Unix(), 0).Err(); err != nil {
		return len(stale), fmt.Errorf("failed to stamp sync: %w", err)
	}
	return len(stale), nil
}

// Get reads one mirrored price. It returns domain.ErrNotFound for unknown ids.
func (m *Mirror) Get(ctx context.Context, id string) (*PriceRecord, error) {
	h, err := m.client.HGetAll(ctx, m.keys.Price(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("price %s: %w", id, domain.ErrNotFound)
	}
	return recordFromHash(id, h)
}

// Count returns the number of mirrored ids.
func (m *Mirror) Count(ctx context.Context) (int64, error) {
	n, err := m.client.SCard(ctx, m.keys.All()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return n, nil
}

// LastSync returns the time of the last full Sync, zero when none ran.
func (m *Mirror) LastSync(ctx context.Context) (time.Time, error) {
	ts, err := m.client.Get(ctx, m.keys.Synced()).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync stamp: %w", err)
	}
	return time.Unix(ts, 0), nil
}

// Ping checks the connection.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}
