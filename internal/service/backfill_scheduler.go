package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/jobs"
)

// JobTypeBackfill identifies queued course backfill jobs.
const JobTypeBackfill = "attendance.backfill"

type backfillRunner interface {
	Run(ctx context.Context, courseID string, referenceNow time.Time) (*models.BackfillResult, error)
}

type backfillJobPayload struct {
	CourseID     string
	ReferenceNow time.Time
}

// BackfillSchedulerConfig tunes the headless trigger.
type BackfillSchedulerConfig struct {
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// BackfillScheduler periodically enqueues one backfill job per course.
// The queue runs a single worker so jobs never write concurrently.
type BackfillScheduler struct {
	runner backfillRunner
	roster rosterDirectory
	clock  Clock
	queue  *jobs.Queue
	cfg    BackfillSchedulerConfig
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBackfillScheduler wires the scheduler onto an in-process queue.
func NewBackfillScheduler(runner backfillRunner, roster rosterDirectory, clock Clock, cfg BackfillSchedulerConfig, logger *zap.Logger) *BackfillScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	s := &BackfillScheduler{runner: runner, roster: roster, clock: clock, cfg: cfg, logger: logger}
	s.queue = jobs.NewQueue("attendance-backfill", s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: len(roster.Courses()) * 2,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the worker and the ticker. A first pass is enqueued immediately.
func (s *BackfillScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.queue.Start(ctx)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		s.enqueueAll()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.enqueueAll()
			}
		}
	}()
	s.logger.Info("backfill scheduler started", zap.Duration("interval", s.cfg.Interval))
}

// Stop halts the ticker and drains the worker.
func (s *BackfillScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.queue.Stop()
}

// Trigger enqueues a backfill job for one course at the current time.
func (s *BackfillScheduler) Trigger(courseID string) error {
	if !s.roster.HasCourse(courseID) {
		return fmt.Errorf("unknown course %q", courseID)
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeBackfill,
		Payload: backfillJobPayload{CourseID: courseID, ReferenceNow: s.clock.Now()},
	})
}

func (s *BackfillScheduler) enqueueAll() {
	for _, course := range s.roster.Courses() {
		if err := s.Trigger(course.ID); err != nil {
			s.logger.Warn("failed to enqueue backfill", zap.String("course_id", course.ID), zap.Error(err))
		}
	}
}

func (s *BackfillScheduler) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(backfillJobPayload)
	if !ok {
		s.logger.Error("unexpected backfill payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	result, err := s.runner.Run(ctx, payload.CourseID, payload.ReferenceNow)
	if err != nil {
		return err
	}
	s.logger.Debug("backfill job finished",
		zap.String("job_id", job.ID),
		zap.String("course_id", result.CourseID),
		zap.Int("created", result.Created),
	)
	return nil
}

// Stats exposes the underlying queue counters.
func (s *BackfillScheduler) Stats() jobs.Stats {
	return s.queue.Stats()
}
