package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/pkg/scheduler"
)

type exportCleaner interface {
	Cleanup(ttl time.Duration) ([]string, error)
}

type refreshTokenPurger interface {
	PurgeRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

type taskScheduler interface {
	Every(name string, interval time.Duration, task scheduler.Task) error
}

// HousekeepingService removes expired exports and stale refresh tokens.
type HousekeepingService struct {
	exports exportCleaner
	tokens  refreshTokenPurger
	logger  *zap.Logger
	now     func() time.Time
}

// NewHousekeepingService constructs a HousekeepingService. Either dependency may be nil.
func NewHousekeepingService(exports exportCleaner, tokens refreshTokenPurger, logger *zap.Logger) *HousekeepingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HousekeepingService{exports: exports, tokens: tokens, logger: logger, now: time.Now}
}

// PurgeExports deletes export files older than their download TTL.
func (s *HousekeepingService) PurgeExports(context.Context) error {
	if s.exports == nil {
		return nil
	}
	deleted, err := s.exports.Cleanup(0)
	if err != nil {
		return fmt.Errorf("cleanup exports: %w", err)
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
	return nil
}

// PurgeRefreshTokens deletes refresh tokens that expired or were revoked before now.
func (s *HousekeepingService) PurgeRefreshTokens(ctx context.Context) error {
	if s.tokens == nil {
		return nil
	}
	n, err := s.tokens.PurgeRefreshTokens(ctx, s.now().UTC())
	if err != nil {
		return fmt.Errorf("purge refresh tokens: %w", err)
	}
	if n > 0 {
		s.logger.Info("stale refresh tokens removed", zap.Int64("count", n))
	}
	return nil
}

// Schedule registers both jobs.
func (s *HousekeepingService) Schedule(sched taskScheduler, interval time.Duration) error {
	if err := sched.Every("exports.cleanup", interval, s.PurgeExports); err != nil {
		return err
	}
	return sched.Every("refresh_tokens.purge", interval, s.PurgeRefreshTokens)
}
