package slotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/slots"
	"github.com/redis/go-redis/v9"
)

// Client is the subset of go-redis used by the cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// Cache stores annotated slots per (product, date) under a generation token built from a
// product-wide and a per-date counter. Writers bump a counter instead of deleting keys, so a
// lookup that raced with a booking stores its result under a token nobody reads again.
//
// A nil *Cache is a valid, always-missing cache.
type Cache struct {
	rdb Client
	ttl time.Duration
}

func New(rdb Client, ttl time.Duration) *Cache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func productVersionKey(productID string) string {
	return "slots:pver:" + productID
}

func dateVersionKey(productID, date string) string {
	return "slots:ver:" + productID + ":" + date
}

func entryKey(productID, date, token string) string {
	return "slots:" + productID + ":" + date + ":" + token
}

// Token returns the current generation token of (productID, date). It must be read before the
// database query whose result will be stored with Put.
func (c *Cache) Token(ctx context.Context, productID, date string) (string, error) {
	if c == nil {
		return "", nil
	}
	vals, err := c.rdb.MGet(ctx, productVersionKey(productID), dateVersionKey(productID, date)).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("p%d.d%d", versionOf(vals, 0), versionOf(vals, 1)), nil
}

func versionOf(vals []interface{}, i int) int64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	s, ok := vals[i].(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func (c *Cache) Get(ctx context.Context, productID, date, token string) ([]slots.Annotated, bool, error) {
	if c == nil || token == "" {
		return nil, false, nil
	}
	raw, err := c.rdb.Get(ctx, entryKey(productID, date, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []slots.Annotated
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (c *Cache) Put(ctx context.Context, productID, date, token string, annotated []slots.Annotated) error {
	if c == nil || token == "" {
		return nil
	}
	raw, err := json.Marshal(annotated)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, entryKey(productID, date, token), raw, c.ttl).Err()
}

// InvalidateDate makes every cached entry of (productID, date) unreachable.
func (c *Cache) InvalidateDate(ctx context.Context, productID, date string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Incr(ctx, dateVersionKey(productID, date)).Err()
}

// InvalidateProduct makes every cached entry of productID unreachable, for all dates.
func (c *Cache) InvalidateProduct(ctx context.Context, productID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Incr(ctx, productVersionKey(productID)).Err()
}
