package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DetailCache keeps rendered invoice details in Redis for a short TTL.
// Every mutation of an invoice invalidates its entry, so a stale read can
// survive at most the TTL after an out-of-band database change.
type DetailCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewDetailCache constructs a cache. A nil client disables caching.
func NewDetailCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *DetailCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailCache{client: client, ttl: ttl, logger: logger}
}

func detailKey(invoiceID int64) string {
	return fmt.Sprintf("billing:invoice:%d:detail", invoiceID)
}

// Get returns the cached detail payload, or nil on miss or error.
func (c *DetailCache) Get(ctx context.Context, invoiceID int64) []byte {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, detailKey(invoiceID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("invoice cache read failed", slog.Int64("invoice_id", invoiceID), slog.Any("error", err))
		}
		return nil
	}
	return raw
}

// Set stores the detail payload. Failures are logged and ignored.
func (c *DetailCache) Set(ctx context.Context, invoiceID int64, payload any) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, detailKey(invoiceID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("invoice cache write failed", slog.Int64("invoice_id", invoiceID), slog.Any("error", err))
	}
}

// Invalidate drops the cached entry for an invoice.
func (c *DetailCache) Invalidate(ctx context.Context, invoiceID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, detailKey(invoiceID)).Err(); err != nil {
		c.logger.Warn("invoice cache invalidate failed", slog.Int64("invoice_id", invoiceID), slog.Any("error", err))
	}
}
