// Package gate caches advance-check projections. The cache is a
// convenience for read traffic only: write paths always recompute the gate
// inside their transactional unit and never trust a cached result.
package gate

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"dealflow/internal/workflow/models"
	id "dealflow/pkg/domain"
)

const keyPrefix = "gate:tx:"

// Cache stores gate results in Redis with a short TTL. A nil *Cache is a
// valid no-op, so wiring stays simple when Redis is not configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached gate result, or nil on miss or any cache failure.
// Cache failures are never promoted to caller errors.
func (c *Cache) Get(ctx context.Context, txID id.TransactionID) *models.GateResult {
	if c == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, keyPrefix+txID.String()).Bytes()
	if err != nil {
		return nil
	}
	var result models.GateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.WarnContext(ctx, "corrupt gate cache entry dropped", "transaction_id", txID.String())
		c.Invalidate(ctx, txID)
		return nil
	}
	return &result
}

// Put stores a gate result under the configured TTL.
func (c *Cache) Put(ctx context.Context, txID id.TransactionID, result *models.GateResult) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+txID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "gate cache write failed", "error", err.Error())
	}
}

// Invalidate drops the cached decision for a transaction. Called after any
// condition or step mutation that could change the gate.
func (c *Cache) Invalidate(ctx context.Context, txID id.TransactionID) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+txID.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "gate cache invalidation failed", "error", err.Error())
	}
}
