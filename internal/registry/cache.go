// Package registry caches the startup-discovered symbol list and
// triangular relation set in Redis. cmd/triengine reads back only the
// symbol list (when no symbols are given); it does not call
// LoadRelations and runs relation discovery on every start.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
)

const (
	symbolsKey   = "triarb:symbols"
	relationsKey = "triarb:relations"
	defaultTTL   = 24 * time.Hour
)

// RelationSeed is the minimal shape persisted per discovered relation;
// the detector rebuilds spreads and dispatch indices from the live
// symbol set, so only the triangle's identity and overrides are cached.
type RelationSeed struct {
	Leg1, Leg2, Leg3         string
	MinSpreadPct, MaxQuantity float64
	Enabled                  bool
}

// Cache wraps a Redis client with the engine's two cached collections.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a Cache against an already-configured Redis client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: defaultTTL}
}

// NewFromAddr dials a Redis client from an address like "localhost:6379".
func NewFromAddr(addr string) *Cache {
	return New(redis.NewClient(&redis.Options{Addr: addr}))
}

// SaveSymbols persists the registered ticker list.
func (c *Cache) SaveSymbols(ctx context.Context, tickers []string) error {
	b, err := json.Marshal(tickers)
	if err != nil {
		return fmt.Errorf("marshal symbols: %w", err)
	}
	return c.client.Set(ctx, symbolsKey, b, c.ttl).Err()
}

// LoadSymbols returns the cached ticker list, or (nil, false) on a miss.
func (c *Cache) LoadSymbols(ctx context.Context) ([]string, bool) {
	b, err := c.client.Get(ctx, symbolsKey).Bytes()
	if err != nil {
		return nil, false
	}
	var tickers []string
	if err := json.Unmarshal(b, &tickers); err != nil {
		return nil, false
	}
	return tickers, true
}

// SaveRelations persists the discovered triangular relation set.
func (c *Cache) SaveRelations(ctx context.Context, seeds []RelationSeed) error {
	b, err := json.Marshal(seeds)
	if err != nil {
		return fmt.Errorf("marshal relations: %w", err)
	}
	return c.client.Set(ctx, relationsKey, b, c.ttl).Err()
}

// LoadRelations returns the cached relation seeds, or (nil, false) on a miss.
func (c *Cache) LoadRelations(ctx context.Context) ([]RelationSeed, bool) {
	b, err := c.client.Get(ctx, relationsKey).Bytes()
	if err != nil {
		return nil, false
	}
	var seeds []RelationSeed
	if err := json.Unmarshal(b, &seeds); err != nil {
		return nil, false
	}
	return seeds, true
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
