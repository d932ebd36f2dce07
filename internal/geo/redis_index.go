package geo

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisIndex is an optional accelerated nearest-driver prefilter backed by a
// Redis GEO set. It is never the system of record: the driver registry's
// in-memory DriverPresence remains authoritative for availability and
// freshness. Losing this index only degrades candidate selection back to the
// in-memory linear scan.
type RedisIndex struct {
	client *redis.Client
	key    string
}

// NewRedisIndex wraps an existing Redis client. key namespaces the GEO set,
// letting multiple dispatch instances share a cluster without collision.
func NewRedisIndex(client *redis.Client, key string) *RedisIndex {
	if key == "" {
		key = "ridedispatch:drivers:geo"
	}
	return &RedisIndex{client: client, key: key}
}

// Upsert records or updates a driver's last-known position.
func (idx *RedisIndex) Upsert(ctx context.Context, connID string, lat, lng float64) error {
	return idx.client.GeoAdd(ctx, idx.key, &redis.GeoLocation{
		Name:      connID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// Remove drops a connection from the index, called on driver disconnect.
func (idx *RedisIndex) Remove(ctx context.Context, connID string) error {
	return idx.client.ZRem(ctx, idx.key, connID).Err()
}

// Nearest returns up to limit connection ids ordered by ascending distance
// (km) from the given point. It is a prefilter only — callers still apply
// availability and freshness gates against the authoritative registry.
func (idx *RedisIndex) Nearest(ctx context.Context, lat, lng float64, limit int) ([]string, error) {
	results, err := idx.client.GeoSearchLocation(ctx, idx.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     200,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Name)
	}
	return ids, nil
}

// Ping verifies connectivity to the index's Redis server. The readiness
// endpoint does not call it; it checks only the audit-trail database.
func (idx *RedisIndex) Ping(ctx context.Context) error {
	return idx.client.Ping(ctx).Err()
}
