/*
Package cache provides a read-through cache for computed commission rows.

PURPOSE:
  Commission reads are the hottest path in the API (every dashboard render
  asks for them) while writes happen only on recalculation. Caching the
  serialized row per (actor, year, week) with a short TTL takes repeated
  reads off the database.

BACKENDS:
  Redis: production backend (go-redis v9), 1 hour TTL by default.
  Noop:  used when no Redis address is configured; every Get misses.
         The API code is identical either way.

INVALIDATION:
  The recalculation job invalidates the affected keys after every upsert.
  TTL is the backstop for anything invalidation misses - cached figures
  can never outlive it.

KEYS:
  commission:<actor>:<year>:<week>

SEE ALSO:
  - api/recalc.go: Writes and invalidates
  - api/handlers.go: Cache-first reads
*/
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vendaops/sales-engine/crm"
)

// DefaultTTL bounds how stale a cached commission row can get.
const DefaultTTL = time.Hour

// CommissionCache is the read-through cache the API and recalc job share.
type CommissionCache interface {
	// Get returns the cached row, or nil on a miss. A broken backend
	// degrades to a miss, never an error surfaced to the caller.
	Get(ctx context.Context, actorID crm.ActorID, year, week int) (*crm.CommissionRow, error)
	Set(ctx context.Context, row crm.CommissionRow) error
	Invalidate(ctx context.Context, actorID crm.ActorID, year, week int) error
}

func key(actorID crm.ActorID, year, week int) string {
	return fmt.Sprintf("commission:%s:%d:%d", actorID, year, week)
}

// =============================================================================
// REDIS BACKEND
// =============================================================================

// Redis caches commission rows in a Redis instance.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: client, ttl: DefaultTTL}, nil
}

// WithTTL overrides the default TTL.
func (r *Redis) WithTTL(ttl time.Duration) *Redis {
	r.ttl = ttl
	return r
}

func (r *Redis) Get(ctx context.Context, actorID crm.ActorID, year, week int) (*crm.CommissionRow, error) {
	payload, err := r.client.Get(ctx, key(actorID, year, week)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, nil // Degrade to a miss, the store is authoritative
	}
	var row crm.CommissionRow
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, nil // Corrupt entry: treat as a miss, TTL cleans it up
	}
	return &row, nil
}

func (r *Redis) Set(ctx context.Context, row crm.CommissionRow) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return r.client.Set(ctx, key(row.ActorID, row.Year, row.Week), payload, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, actorID crm.ActorID, year, week int) error {
	return r.client.Del(ctx, key(actorID, year, week)).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }

// =============================================================================
// NOOP BACKEND
// =============================================================================

// Noop is the cache used when Redis is not configured: always a miss.
type Noop struct{}

func (Noop) Get(context.Context, crm.ActorID, int, int) (*crm.CommissionRow, error) {
	return nil, nil
}
func (Noop) Set(context.Context, crm.CommissionRow) error            { return nil }
func (Noop) Invalidate(context.Context, crm.ActorID, int, int) error { return nil }

var _ CommissionCache = (*Redis)(nil)
var _ CommissionCache = Noop{}
