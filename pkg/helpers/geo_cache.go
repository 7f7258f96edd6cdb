package helpers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	mailtpl "github.com/oksasatya/ngo-backoffice/pkg/mailer/templates"
)

// RedisGeoCache shares IP lookups between the API and the email worker.
type RedisGeoCache struct {
	rdb  *redis.Client
	next mailtpl.GeoResolver
	ttl  time.Duration
}

func NewRedisGeoCache(rdb *redis.Client, next mailtpl.GeoResolver, ttl time.Duration) *RedisGeoCache {
	return &RedisGeoCache{rdb: rdb, next: next, ttl: ttl}
}

func geoKey(ip string) string { return "geo:ip:" + ip }

func (c *RedisGeoCache) Lookup(ctx context.Context, ip string) (mailtpl.Geo, error) {
	var g mailtpl.Geo
	if c.rdb != nil {
		if ok, err := RedisGetJSON(ctx, c.rdb, geoKey(ip), &g); err == nil && ok {
			return g, nil
		}
	}
	g, err := c.next.Lookup(ctx, ip)
	if err != nil {
		return mailtpl.Geo{}, err
	}
	if c.rdb != nil {
		_ = RedisSetJSON(ctx, c.rdb, geoKey(ip), g, c.ttl)
	}
	return g, nil
}
