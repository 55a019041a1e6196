package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/temcen/storerec/internal/cache"
	"github.com/temcen/storerec/internal/config"
	"github.com/temcen/storerec/internal/recommend"
	"github.com/temcen/storerec/pkg/models"
)

// Artifact names accepted by Invalidate.
const (
	ArtifactContent       = "content"
	ArtifactCollaborative = "collaborative"
	ArtifactCatalog       = "catalog"
)

var AllArtifacts = []string{ArtifactCatalog, ArtifactContent, ArtifactCollaborative}

var ErrUnknownArtifact = errors.New("unknown artifact")

// ArtifactService serves the derived artifacts from the cache store and
// rebuilds them wholesale on a miss. Concurrent misses on the same key share a
// single rebuild.
type ArtifactService struct {
	catalog CatalogProvider
	ratings RatingProvider
	store   cache.Store
	builder *recommend.IndexBuilder
	weights recommend.FieldWeights
	config  *config.CacheConfig
	metrics *Metrics
	logger  *logrus.Logger
	group   singleflight.Group

	// generations counts invalidations per key. A build only writes its
	// result if no invalidation happened since it started.
	mu          sync.RWMutex
	generations map[string]uint64
}

func NewArtifactService(
	catalog CatalogProvider,
	ratings RatingProvider,
	store cache.Store,
	cacheCfg *config.CacheConfig,
	contentCfg *config.ContentConfig,
	metrics *Metrics,
	logger *logrus.Logger,
) *ArtifactService {
	weights := recommend.FieldWeights{
		Title:       contentCfg.TitleWeight,
		Description: contentCfg.DescriptionWeight,
		Category:    contentCfg.CategoryWeight,
	}
	if weights == (recommend.FieldWeights{}) {
		weights = recommend.DefaultFieldWeights
	}

	return &ArtifactService{
		catalog: catalog,
		ratings: ratings,
		store:   store,
		builder: recommend.NewIndexBuilder(recommend.NewTokenizer()),
		weights: weights,
		config:  cacheCfg,
		metrics: metrics,
		logger:  logger,

		generations: make(map[string]uint64),
	}
}

func (s *ArtifactService) ContentIndex(ctx context.Context) (*recommend.ContentIndex, error) {
	key := s.config.Keys.Content
	if data, ok := s.lookup(ctx, ArtifactContent, key); ok {
		index, err := cache.DecodeContentIndex(data)
		if err == nil {
			return index, nil
		}
		s.corrupt(ArtifactContent, key, err)
	}

	v, err := s.rebuild(ctx, ArtifactContent, key, func(ctx context.Context) (interface{}, []byte, error) {
		products, err := s.Products(ctx)
		if err != nil {
			return nil, nil, err
		}
		index := recommend.BuildContentIndex(products, s.builder, s.weights)
		data, err := cache.EncodeContentIndex(index)
		return index, data, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*recommend.ContentIndex), nil
}

func (s *ArtifactService) RatingMatrices(ctx context.Context) (*recommend.RatingMatrices, error) {
	key := s.config.Keys.Ratings
	if data, ok := s.lookup(ctx, ArtifactCollaborative, key); ok {
		m, err := cache.DecodeRatingMatrices(data)
		if err == nil {
			return m, nil
		}
		s.corrupt(ArtifactCollaborative, key, err)
	}

	v, err := s.rebuild(ctx, ArtifactCollaborative, key, func(ctx context.Context) (interface{}, []byte, error) {
		ratings, err := s.ratings.List(ctx, models.RatingFilter{})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list ratings: %w", err)
		}
		m := recommend.BuildRatingMatrices(ratings)
		data, err := cache.EncodeRatingMatrices(m)
		return m, data, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*recommend.RatingMatrices), nil
}

func (s *ArtifactService) Products(ctx context.Context) ([]models.Product, error) {
	key := s.config.Keys.Products
	if data, ok := s.lookup(ctx, ArtifactCatalog, key); ok {
		products, err := cache.DecodeProducts(data)
		if err == nil {
			return products, nil
		}
		s.corrupt(ArtifactCatalog, key, err)
	}

	v, err := s.rebuild(ctx, ArtifactCatalog, key, func(ctx context.Context) (interface{}, []byte, error) {
		products, err := s.catalog.List(ctx, models.ProductFilter{})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list products: %w", err)
		}
		data, err := cache.EncodeProducts(products)
		return products, data, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Product), nil
}

// Invalidate deletes the named artifacts, or all of them when none are named.
// The next request for each rebuilds it.
func (s *ArtifactService) Invalidate(ctx context.Context, artifacts ...string) ([]string, error) {
	names, keys, err := s.resolve(artifacts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, key := range keys {
		s.generations[key]++
		s.group.Forget(key)
	}
	s.mu.Unlock()

	if err := s.store.Delete(ctx, keys...); err != nil {
		return nil, fmt.Errorf("failed to delete artifacts: %w", err)
	}

	s.logger.WithField("artifacts", names).Info("Invalidated recommendation artifacts")
	return names, nil
}

// Warm invalidates every artifact and rebuilds them all.
func (s *ArtifactService) Warm(ctx context.Context) ([]string, error) {
	names, err := s.Invalidate(ctx)
	if err != nil {
		return nil, err
	}

	// the content index reads the catalog snapshot, so build that first
	if _, err := s.Products(ctx); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.ContentIndex(gctx)
		return err
	})
	g.Go(func() error {
		_, err := s.RatingMatrices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.WithField("artifacts", names).Info("Warmed recommendation artifacts")
	return names, nil
}

func (s *ArtifactService) resolve(artifacts []string) ([]string, []string, error) {
	if len(artifacts) == 0 {
		artifacts = AllArtifacts
	}

	seen := make(map[string]bool, len(artifacts))
	var names, keys []string
	for _, name := range artifacts {
		if seen[name] {
			continue
		}
		seen[name] = true

		key, ok := s.keyFor(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownArtifact, name)
		}
		names = append(names, name)
		keys = append(keys, key)
	}
	sort.Strings(names)
	return names, keys, nil
}

func (s *ArtifactService) keyFor(name string) (string, bool) {
	switch name {
	case ArtifactContent:
		return s.config.Keys.Content, true
	case ArtifactCollaborative:
		return s.config.Keys.Ratings, true
	case ArtifactCatalog:
		return s.config.Keys.Products, true
	}
	return "", false
}

// lookup reports a hit with its blob. Store failures are treated as a miss.
func (s *ArtifactService) lookup(ctx context.Context, artifact, key string) ([]byte, bool) {
	data, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		s.metrics.CacheLookups.WithLabelValues(artifact, "hit").Inc()
		return data, true
	case errors.Is(err, cache.ErrMiss):
		s.metrics.CacheLookups.WithLabelValues(artifact, "miss").Inc()
	default:
		s.metrics.CacheLookups.WithLabelValues(artifact, "error").Inc()
		s.logger.WithError(err).WithField("key", key).Warn("Artifact cache read failed, rebuilding")
	}
	return nil, false
}

func (s *ArtifactService) corrupt(artifact, key string, err error) {
	s.metrics.CacheLookups.WithLabelValues(artifact, "corrupt").Inc()
	s.logger.WithError(err).WithField("key", key).Warn("Discarding unreadable artifact, rebuilding")
}

type buildFunc func(ctx context.Context) (interface{}, []byte, error)

// rebuild runs build once per key for all concurrent callers. The build is
// detached from the caller's cancellation so one departing request does not
// fail the others waiting on it. A build overtaken by Invalidate still answers
// its callers but is not cached.
func (s *ArtifactService) rebuild(ctx context.Context, artifact, key string, build buildFunc) (interface{}, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		buildCtx := context.WithoutCancel(ctx)
		start := time.Now()
		generation := s.generation(key)

		value, data, err := build(buildCtx)
		if err != nil {
			s.metrics.ArtifactBuildErrors.WithLabelValues(artifact).Inc()
			return nil, fmt.Errorf("failed to build %s artifact: %w", artifact, err)
		}
		s.metrics.ArtifactBuildDuration.WithLabelValues(artifact).Observe(time.Since(start).Seconds())

		if !s.storeIfCurrent(buildCtx, key, generation, data) {
			s.logger.WithFields(logrus.Fields{
				"artifact": artifact,
				"key":      key,
			}).Info("Artifact invalidated during rebuild, not caching")
			return value, nil
		}

		s.logger.WithFields(logrus.Fields{
			"artifact": artifact,
			"bytes":    len(data),
			"duration": time.Since(start),
		}).Info("Rebuilt recommendation artifact")
		return value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ArtifactService) generation(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[key]
}

// storeIfCurrent writes data unless key was invalidated after generation was
// read. Invalidate bumps the generation under the write lock before deleting,
// so a write either sees the bump or is removed by the delete that follows it.
func (s *ArtifactService) storeIfCurrent(ctx context.Context, key string, generation uint64, data []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generations[key] != generation {
		return false
	}
	if err := s.store.Set(ctx, key, data, s.config.TTL); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to cache artifact")
	}
	return true
}
