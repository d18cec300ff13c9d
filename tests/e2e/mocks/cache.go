package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TrackingCache is an in-process cache that counts calls and stores values as
// JSON, the same way the redis cache does.
type TrackingCache struct {
	mu       sync.Mutex
	GetCalls int
	SetCalls int
	HitCalls int
	data     map[string]CacheEntry
}

type CacheEntry struct {
	Value  []byte
	Expiry time.Time
}

func (c *TrackingCache) Get(ctx context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetCalls++

	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.Expiry) {
		return redis.Nil
	}
	c.HitCalls++
	return json.Unmarshal(entry.Value, dest)
}

func (c *TrackingCache) Set(ctx context.Context, key string, value any, exp time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetCalls++
	if c.data == nil {
		c.data = make(map[string]CacheEntry)
	}
	c.data[key] = CacheEntry{Value: raw, Expiry: time.Now().Add(exp)}
	return nil
}

func (c *TrackingCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return 0, redis.Nil
	}
	return time.Until(entry.Expiry), nil
}

// Keys lists the stored keys.
func (c *TrackingCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	return out
}

func (c *TrackingCache) Stats() (gets, sets, hits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.GetCalls, c.SetCalls, c.HitCalls
}

func (c *TrackingCache) Close() error {
	return nil
}
