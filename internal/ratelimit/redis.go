package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis is a Limiter backed by a shared Redis instance, for deployments
// running more than one server replica. SETNX with an expiry gives the same
// atomic insert-if-absent semantics as the in-memory set.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis creates a Redis-backed limiter. The prefix namespaces keys so
// independent flows sharing one Redis do not collide.
func NewRedis(client *redis.Client, ttl time.Duration, prefix string) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		prefix: "ratelimit:" + prefix + ":",
	}
}

// IsAllowedByRateLimit implements Limiter. A Redis outage fails open: an
// unreachable limiter must not lock every principal out of login.
func (r *Redis) IsAllowedByRateLimit(ctx context.Context, host, principal, operation string) bool {
	key := r.prefix + compositeKey(host, principal, operation)

	admitted, err := r.client.SetNX(ctx, key, "1", r.ttl).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rate limit check failed, admitting")
		return true
	}
	return admitted
}
