package store

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	deliveryKeyPrefix = "webhook:event:"
	deliveryTTL       = 24 * time.Hour
)

// DeliveryCache is a best-effort record of webhook event IDs that were
// fully processed, used to answer duplicate deliveries without touching the
// database. It is an optimization only: at-most-once crediting rests on the
// credit_applications row committed with the wallet update, so a lost cache
// entry just means the duplicate is reprocessed and no-ops at the store.
type DeliveryCache struct {
	rdb *redis.Client
}

// NewDeliveryCache wraps the redis client. A nil client disables the cache.
func NewDeliveryCache(rdb *redis.Client) *DeliveryCache {
	return &DeliveryCache{rdb: rdb}
}

// Seen reports whether a delivery with this event ID already completed.
// Lookup failures read as unseen.
func (c *DeliveryCache) Seen(ctx context.Context, eventID string) bool {
	if c.rdb == nil || eventID == "" {
		return false
	}
	n, err := c.rdb.Exists(ctx, deliveryKeyPrefix+eventID).Result()
	if err != nil {
		log.Printf("[CACHE] Delivery lookup failed for %s: %v", eventID, err)
		return false
	}
	return n > 0
}

// MarkProcessed records a fully processed delivery. Failures are logged and
// swallowed; the next duplicate simply reaches the store.
func (c *DeliveryCache) MarkProcessed(ctx context.Context, eventID string) {
	if c.rdb == nil || eventID == "" {
		return
	}
	if err := c.rdb.Set(ctx, deliveryKeyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), deliveryTTL).Err(); err != nil {
		log.Printf("[CACHE] Failed to record delivery %s: %v", eventID, err)
	}
}
