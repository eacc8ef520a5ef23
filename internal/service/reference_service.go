package service

import (
	"context"
	"time"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

type referenceRepository interface {
	ListUserTypes(ctx context.Context) ([]models.UserTypeInfo, error)
	FindUserType(ctx context.Context, name models.UserType) (*models.UserTypeInfo, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
}

// ReferenceService serves user types and departments through the read cache.
type ReferenceService struct {
	repo  referenceRepository
	cache *CacheService
	ttl   time.Duration
}

// NewReferenceService constructs a ReferenceService. cache may be nil.
func NewReferenceService(repo referenceRepository, cache *CacheService, ttl time.Duration) *ReferenceService {
	return &ReferenceService{repo: repo, cache: cache, ttl: ttl}
}

// UserTypes lists every user type with its reservation limit.
func (s *ReferenceService) UserTypes(ctx context.Context) ([]models.UserTypeInfo, error) {
	types, err := remember(ctx, s.cache, cacheKeyUserTypes, s.ttl, func() ([]models.UserTypeInfo, error) {
		return s.repo.ListUserTypes(ctx)
	})
	if err != nil {
		return nil, internalError(err, "failed to list user types")
	}
	return types, nil
}

// Departments lists every department.
func (s *ReferenceService) Departments(ctx context.Context) ([]models.Department, error) {
	departments, err := remember(ctx, s.cache, cacheKeyDepartments, s.ttl, func() ([]models.Department, error) {
		return s.repo.ListDepartments(ctx)
	})
	if err != nil {
		return nil, internalError(err, "failed to list departments")
	}
	return departments, nil
}

// ListDepartments satisfies the department lookup used by bulk import.
func (s *ReferenceService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	return s.Departments(ctx)
}

// MaxDuration returns the longest reservation a user type may hold; zero means unlimited.
func (s *ReferenceService) MaxDuration(ctx context.Context, userType models.UserType) (time.Duration, error) {
	types, err := s.UserTypes(ctx)
	if err != nil {
		return 0, err
	}
	for _, t := range types {
		if t.Name == userType {
			return time.Duration(t.PossibleDuration) * time.Hour, nil
		}
	}
	info, err := s.repo.FindUserType(ctx, userType)
	if err != nil {
		return 0, lookupError(err, "unknown user type", "failed to load user type")
	}
	return time.Duration(info.PossibleDuration) * time.Hour, nil
}
