package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const defaultMemoryMaxCost = 256 << 20

var errRejected = errors.New("memory cache rejected value")

// MemoryStore is an in-process backend for single-instance deployments and
// tests. Cost is the blob size in bytes.
type MemoryStore struct {
	cache *ristretto.Cache[string, []byte]
}

func NewMemoryStore(maxCost int64) (*MemoryStore, error) {
	if maxCost <= 0 {
		maxCost = defaultMemoryMaxCost
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        1e4,
		MaxCost:            maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryStore{cache: c}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return value, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.cache.SetWithTTL(key, value, int64(len(value))+1, ttl) {
		return fmt.Errorf("set %s: %w", key, errRejected)
	}
	// make the write visible to the next Get
	s.cache.Wait()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.cache.Del(key)
	}
	s.cache.Wait()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() {
	s.cache.Close()
}
