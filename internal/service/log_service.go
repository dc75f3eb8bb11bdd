package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
	"github.com/noah-isme/sirama-krs-engine/pkg/config"
	appErrors "github.com/noah-isme/sirama-krs-engine/pkg/errors"
)

type enrollmentLogReader interface {
	List(ctx context.Context, filter models.EnrollmentLogFilter) ([]models.AttemptOutcome, error)
	Stats(ctx context.Context, accountID string) (*models.EnrollmentStats, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const statsCachePrefix = "enrollment:stats:"

// LogService exposes the append-only enrollment log for inspection. Stats
// are cached since the log only grows between runs.
type LogService struct {
	repo   enrollmentLogReader
	cache  statsCache
	cfg    config.LogQueryConfig
	logger *zap.Logger
}

// NewLogService creates a new log service.
func NewLogService(repo enrollmentLogReader, cache statsCache, cfg config.LogQueryConfig, logger *zap.Logger) *LogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogService{repo: repo, cache: cache, cfg: cfg, logger: logger}
}

// List returns logged outcomes newest first. The limit is clamped to the
// configured maximum.
func (s *LogService) List(ctx context.Context, filter models.EnrollmentLogFilter) ([]models.AttemptOutcome, error) {
	if filter.Limit <= 0 {
		filter.Limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && filter.Limit > s.cfg.MaxLimit {
		filter.Limit = s.cfg.MaxLimit
	}

	outcomes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment logs")
	}
	return outcomes, nil
}

// Stats aggregates the log, serving cached results when fresh.
func (s *LogService) Stats(ctx context.Context, accountID string) (*models.EnrollmentStats, error) {
	key := statsCachePrefix + "all"
	if accountID != "" {
		key = statsCachePrefix + accountID
	}

	if s.cache != nil {
		var cached models.EnrollmentStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	stats, err := s.repo.Stats(ctx, accountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate enrollment stats")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cfg.StatsCacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return stats, nil
}

// InvalidateStats drops all cached stats. Called after enrollment runs.
func (s *LogService) InvalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, statsCachePrefix+"*"); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}
