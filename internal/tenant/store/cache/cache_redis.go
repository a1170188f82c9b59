// Package cache keeps host → partition mappings in Redis so tenant
// resolution skips the database on the hot path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "claimdesk/pkg/domain"
)

const (
	domainKeyPrefix = "claimdesk:domain:"
	defaultTTL      = 5 * time.Minute
)

type entry struct {
	TenantID id.TenantID `json:"tenant_id"`
	Schema   string      `json:"schema"`
}

// RedisDomainCache maps hostnames to partitions.
type RedisDomainCache struct {
	client *redis.Client
	ttl    time.Duration
}

type Option func(*RedisDomainCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *RedisDomainCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...Option) *RedisDomainCache {
	c := &RedisDomainCache{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get reports a cached partition for host. A miss is (zero, false, nil).
func (c *RedisDomainCache) Get(ctx context.Context, host string) (id.Partition, bool, error) {
	raw, err := c.client.Get(ctx, domainKeyPrefix+host).Bytes()
	if errors.Is(err, redis.Nil) {
		return id.Partition{}, false, nil
	}
	if err != nil {
		return id.Partition{}, false, fmt.Errorf("get cached domain: %w", err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || !id.ValidSchemaName(e.Schema) {
		// A corrupt entry is treated as a miss and overwritten on the next Set.
		return id.Partition{}, false, nil
	}
	return id.Partition{TenantID: e.TenantID, Schema: e.Schema}, true, nil
}

func (c *RedisDomainCache) Set(ctx context.Context, host string, p id.Partition) error {
	raw, err := json.Marshal(entry{TenantID: p.TenantID, Schema: p.Schema})
	if err != nil {
		return fmt.Errorf("encode cached domain: %w", err)
	}
	return c.client.Set(ctx, domainKeyPrefix+host, raw, c.ttl).Err()
}

func (c *RedisDomainCache) Invalidate(ctx context.Context, host string) error {
	return c.client.Del(ctx, domainKeyPrefix+host).Err()
}
