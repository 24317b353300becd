package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type analyticsRepository interface {
	Overview(ctx context.Context, schoolID string) (*models.ManagerOverview, error)
	StudentProgress(ctx context.Context, schoolID string) ([]models.StudentProgress, error)
}

// AnalyticsService serves cached dashboard aggregates. Lifecycle decisions
// invalidate the school's cache entries so counters stay fresh.
type AnalyticsService struct {
	repo   analyticsRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewAnalyticsService constructs AnalyticsService.
func NewAnalyticsService(repo analyticsRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *AnalyticsService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Overview returns the school dashboard counters, cache-first.
func (s *AnalyticsService) Overview(ctx context.Context, schoolID string) (*models.ManagerOverview, error) {
	key := overviewCacheKey(schoolID)
	cached := &models.ManagerOverview{}
	if hit, _ := s.cache.Get(ctx, key, cached); hit {
		return cached, nil
	}

	overview, err := s.repo.Overview(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build overview")
	}
	overview.SchoolID = schoolID
	overview.GeneratedAt = time.Now().UTC()

	if err := s.cache.Set(ctx, key, overview, s.ttl); err != nil {
		s.logger.Warn("failed to cache overview", zap.String("school_id", schoolID), zap.Error(err))
	}
	return overview, nil
}

// StudentProgress returns per-student session counters, cache-first.
func (s *AnalyticsService) StudentProgress(ctx context.Context, schoolID string) ([]models.StudentProgress, error) {
	key := progressCacheKey(schoolID)
	cached := []models.StudentProgress{}
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	progress, err := s.repo.StudentProgress(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build student progress")
	}

	if err := s.cache.Set(ctx, key, progress, s.ttl); err != nil {
		s.logger.Warn("failed to cache student progress", zap.String("school_id", schoolID), zap.Error(err))
	}
	return progress, nil
}

func overviewCacheKey(schoolID string) string {
	return fmt.Sprintf("analytics:%s:overview", schoolID)
}

func progressCacheKey(schoolID string) string {
	return fmt.Sprintf("analytics:%s:progress", schoolID)
}
