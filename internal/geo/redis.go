package geo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/albapepper/direct-dispatch/internal/event"
)

// Redis keeps user locations in a Redis geo set (sorted set of geohashes).
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedisClient parses a redis:// URL and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedis indexes locations under key.
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Query implements Index with GEOSEARCH ... BYRADIUS, nearest first.
func (r *Redis) Query(ctx context.Context, center event.Coordinate, radiusKm float64) *Query {
	return StartQuery(ctx, func(ctx context.Context) ([]Hit, error) {
		locs, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
			GeoSearchQuery: redis.GeoSearchQuery{
				Longitude:  center.Long,
				Latitude:   center.Lat,
				Radius:     radiusKm,
				RadiusUnit: "km",
				Sort:       "ASC",
			},
			WithCoord: true,
			WithDist:  true,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("geosearch %s: %w", r.key, err)
		}

		hits := make([]Hit, 0, len(locs))
		for _, l := range locs {
			hits = append(hits, Hit{
				Key:        l.Name,
				Location:   event.Coordinate{Lat: l.Latitude, Long: l.Longitude},
				DistanceKm: l.Dist,
			})
		}
		return hits, nil
	})
}

// Set implements Index.
func (r *Redis) Set(ctx context.Context, key string, at event.Coordinate) error {
	if !at.Valid() {
		return fmt.Errorf("set %s: coordinate out of range", key)
	}
	err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      key,
		Longitude: at.Long,
		Latitude:  at.Lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd %s: %w", key, err)
	}
	return nil
}

// Remove implements Index.
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.ZRem(ctx, r.key, key).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Ping reports Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
