package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

const checkpointKeyPrefix = "attendance:backfill:checkpoint:"

// CheckpointRepository stores the last reconciled backfill day per course in Redis.
type CheckpointRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCheckpointRepository constructs a Redis checkpoint repository.
func NewCheckpointRepository(client *redis.Client, logger *zap.Logger) *CheckpointRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckpointRepository{client: client, logger: logger}
}

// Get returns the last reconciled day for the course or appErrors.ErrCacheMiss.
func (r *CheckpointRepository) Get(ctx context.Context, courseID string) (time.Time, error) {
	if r.client == nil {
		return time.Time{}, appErrors.ErrCacheMiss
	}
	key := checkpointKeyPrefix + courseID
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, appErrors.ErrCacheMiss
		}
		return time.Time{}, fmt.Errorf("redis get %s: %w", key, err)
	}
	day, err := models.ParseDay(raw)
	if err != nil {
		r.logger.Warn("discarding malformed backfill checkpoint", zap.String("key", key), zap.String("value", raw))
		return time.Time{}, appErrors.ErrCacheMiss
	}
	return day, nil
}

// Set records the last reconciled day for the course.
func (r *CheckpointRepository) Set(ctx context.Context, courseID string, day time.Time) error {
	if r.client == nil {
		return nil
	}
	key := checkpointKeyPrefix + courseID
	if err := r.client.Set(ctx, key, models.CalendarDay(day).Format(models.DateLayout), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CheckpointRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// MemoryCheckpointRepository keeps checkpoints in process memory.
type MemoryCheckpointRepository struct {
	mu   sync.Mutex
	days map[string]time.Time
}

// NewMemoryCheckpointRepository constructs an empty checkpoint store.
func NewMemoryCheckpointRepository() *MemoryCheckpointRepository {
	return &MemoryCheckpointRepository{days: make(map[string]time.Time)}
}

// Get returns the last reconciled day for the course or appErrors.ErrCacheMiss.
func (r *MemoryCheckpointRepository) Get(_ context.Context, courseID string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day, ok := r.days[courseID]
	if !ok {
		return time.Time{}, appErrors.ErrCacheMiss
	}
	return day, nil
}

// Set records the last reconciled day for the course.
func (r *MemoryCheckpointRepository) Set(_ context.Context, courseID string, day time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days[courseID] = models.CalendarDay(day)
	return nil
}
