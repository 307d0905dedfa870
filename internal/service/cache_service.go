package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-records-api/internal/models"
	appErrors "github.com/noah-isme/campus-records-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// RecordCacheKey builds a statistics cache key scoped to a kind.
func RecordCacheKey(kind models.RecordKind, parts ...string) string {
	key := fmt.Sprintf("records:%s", kind.Slug())
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// RecordCachePattern matches every cached projection of a kind.
func RecordCachePattern(kind models.RecordKind) string {
	return RecordCacheKey(kind, "*")
}

// recordGenerationKey lives outside RecordCachePattern so a pattern delete never resets it.
func recordGenerationKey(kind models.RecordKind) string {
	return fmt.Sprintf("records-gen:%s", kind.Slug())
}

// Generation returns the kind's current cache generation, zero when caching is off or unset.
func (s *CacheService) Generation(ctx context.Context, kind models.RecordKind) int64 {
	if !s.Enabled() {
		return 0
	}
	var gen int64
	if err := s.repo.Get(ctx, recordGenerationKey(kind), &gen); err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache generation read failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	return gen
}

// RecordKey builds a cache key bound to the kind's current generation. Entries
// computed before an invalidation land under a retired generation and are never read.
func (s *CacheService) RecordKey(ctx context.Context, kind models.RecordKind, parts ...string) string {
	gen := "g" + strconv.FormatInt(s.Generation(ctx, kind), 10)
	return RecordCacheKey(kind, append([]string{gen}, parts...)...)
}

// InvalidateKind retires the kind's generation and then drops its cached entries.
func (s *CacheService) InvalidateKind(ctx context.Context, kind models.RecordKind) error {
	if !s.Enabled() {
		return nil
	}
	_, incrErr := s.repo.Incr(ctx, recordGenerationKey(kind))
	if incrErr != nil {
		s.logger.Warn("cache generation bump failed", zap.String("kind", string(kind)), zap.Error(incrErr))
	}
	if err := s.Invalidate(ctx, RecordCachePattern(kind)); err != nil {
		return err
	}
	return incrErr
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}
