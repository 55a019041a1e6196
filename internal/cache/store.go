package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/storerec/internal/config"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store holds opaque artifact blobs under string keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// New picks the backend named in the cache config. The redis client is only
// required for the redis backend.
func New(cfg *config.CacheConfig, client *redis.Client, logger *logrus.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendRedis, "":
		if client == nil {
			return nil, errors.New("redis cache backend selected without a redis client")
		}
		return NewRedisStore(client, BreakerSettings{
			Name:             "artifact-cache",
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		}, logger), nil
	case BackendMemory:
		return NewMemoryStore(cfg.Memory.MaxCost)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
