package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Keys used by the read caches. Reservations are never cached.
const (
	cacheKeyUserTypes   = "ref:user_types"
	cacheKeyDepartments = "ref:departments"
	cacheKeyNoticesAll  = "notices:*"
)

// CacheService fronts the read caches of reference data and notices. After a backend
// failure it bypasses the cache until the cooldown elapses, so a dead Redis costs one
// timeout rather than one per request.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool

	namespace   string
	cooldown    time.Duration
	bypassUntil atomic.Int64
	now         func() time.Time
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled, now: time.Now}
}

// WithNamespace prefixes every key, letting several deployments share one Redis.
func (s *CacheService) WithNamespace(ns string) *CacheService {
	s.namespace = ns
	return s
}

// WithFailureCooldown sets how long the cache is skipped after a backend error. Zero
// disables the bypass.
func (s *CacheService) WithFailureCooldown(d time.Duration) *CacheService {
	s.cooldown = d
	return s
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func (s *CacheService) available() bool {
	if !s.Enabled() {
		return false
	}
	until := s.bypassUntil.Load()
	return until == 0 || s.now().UnixNano() >= until
}

func (s *CacheService) trip(op, key string, err error) {
	s.logger.Warn("cache "+op+" failed", zap.String("key", key), zap.Duration("bypass", s.cooldown), zap.Error(err))
	if s.cooldown > 0 {
		s.bypassUntil.Store(s.now().Add(s.cooldown).UnixNano())
	}
}

func (s *CacheService) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.available() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, s.key(key), dest)
	duration := time.Since(start)
	s.metrics.RecordCacheOperation(err == nil, duration)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.trip("get", key, err)
		return false, err
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.available() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, s.key(key), value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.trip("set", key, err)
	}
	return err
}

// Invalidate removes cached values for the provided pattern. It runs even while the cache
// is bypassed so stale entries do not outlive an outage.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, s.key(pattern)); err != nil {
		s.trip("invalidate", pattern, err)
		return err
	}
	return nil
}

// remember serves a value from cache, or loads and caches it. Cache failures never fail the read.
func remember[T any](ctx context.Context, cache *CacheService, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var cached T
	if hit, _ := cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	value, err := load()
	if err != nil {
		return value, err
	}
	_ = cache.Set(ctx, key, value, ttl)
	return value, nil
}
