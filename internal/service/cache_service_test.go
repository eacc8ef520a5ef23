package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

type stubCacheRepo struct {
	store   map[string][]byte
	getErr  error
	deleted []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deleted = append(s.deleted, pattern)
	for key := range s.store {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.store, key)
		}
	}
	return nil
}

type countingReferenceRepo struct {
	types     []models.UserTypeInfo
	calls     int
	err       error
	findCalls int
}

func (r *countingReferenceRepo) ListUserTypes(context.Context) ([]models.UserTypeInfo, error) {
	r.calls++
	return r.types, r.err
}

func (r *countingReferenceRepo) FindUserType(_ context.Context, name models.UserType) (*models.UserTypeInfo, error) {
	r.findCalls++
	for _, t := range r.types {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, errors.New("missing")
}

func (r *countingReferenceRepo) ListDepartments(context.Context) ([]models.Department, error) {
	r.calls++
	return []models.Department{{ID: 1, Name: "CS"}}, r.err
}

func seededUserTypes() []models.UserTypeInfo {
	return []models.UserTypeInfo{
		{ID: 1, Name: models.UserTypeAdmin, PossibleDuration: 0},
		{ID: 2, Name: models.UserTypeFaculty, PossibleDuration: 12},
		{ID: 3, Name: models.UserTypePostgraduate, PossibleDuration: 2},
		{ID: 4, Name: models.UserTypeUndergraduate, PossibleDuration: 1},
	}
}

func TestReferenceServiceCachesUserTypes(t *testing.T) {
	repo := &countingReferenceRepo{types: seededUserTypes()}
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewReferenceService(repo, cache, time.Hour)

	first, err := svc.UserTypes(context.Background())
	require.NoError(t, err)
	second, err := svc.UserTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.calls)

	limit, err := svc.MaxDuration(context.Background(), models.UserTypePostgraduate)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, limit)
	assert.Equal(t, 1, repo.calls)
}

func TestReferenceServiceWithoutCache(t *testing.T) {
	repo := &countingReferenceRepo{types: seededUserTypes()}
	svc := NewReferenceService(repo, nil, time.Hour)

	_, err := svc.Departments(context.Background())
	require.NoError(t, err)
	_, err = svc.Departments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)

	limit, err := svc.MaxDuration(context.Background(), models.UserTypeAdmin)
	require.NoError(t, err)
	assert.Zero(t, limit)
}

func TestReferenceServiceCacheErrorFallsBackToRepository(t *testing.T) {
	repo := &countingReferenceRepo{types: seededUserTypes()}
	cache := NewCacheService(&stubCacheRepo{getErr: errors.New("redis down")}, nil, time.Minute, nil, true)
	svc := NewReferenceService(repo, cache, time.Hour)

	types, err := svc.UserTypes(context.Background())
	require.NoError(t, err)
	assert.Len(t, types, 4)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, nil, 0, nil, false)
	assert.False(t, cache.Enabled())
	require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.store)
	require.NoError(t, cache.Invalidate(context.Background(), "*"))
	assert.Empty(t, repo.deleted)
}

func TestCacheServiceNamespacesKeys(t *testing.T) {
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, nil, true).WithNamespace("staging")

	require.NoError(t, cache.Set(context.Background(), "notices:1", "x", 0))
	assert.Contains(t, repo.store, "staging:notices:1")

	var out string
	hit, err := cache.Get(context.Background(), "notices:1", &out)
	require.NoError(t, err)
	assert.True(t, hit)

	require.NoError(t, cache.Invalidate(context.Background(), cacheKeyNoticesAll))
	assert.Equal(t, []string{"staging:notices:*"}, repo.deleted)
	assert.Empty(t, repo.store)
}

func TestCacheServiceBypassesAfterFailure(t *testing.T) {
	repo := &stubCacheRepo{getErr: errors.New("redis down")}
	cache := NewCacheService(repo, nil, time.Minute, nil, true).WithFailureCooldown(30 * time.Second)
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	var out string
	_, err := cache.Get(context.Background(), "ref:user_types", &out)
	require.Error(t, err)

	// While bypassed the backend is not touched and writes are dropped.
	hit, err := cache.Get(context.Background(), "ref:user_types", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, cache.Set(context.Background(), "ref:user_types", "x", 0))
	assert.Empty(t, repo.store)

	now = now.Add(31 * time.Second)
	repo.getErr = nil
	require.NoError(t, cache.Set(context.Background(), "ref:user_types", "x", 0))
	hit, err = cache.Get(context.Background(), "ref:user_types", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "x", out)
}
