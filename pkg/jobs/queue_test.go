package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 2)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.Payload.(string))
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 1})

	require.Error(t, q.Enqueue(Job{Payload: "early"}))

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{Type: "attendance.backfill", Payload: "X"}))
	require.NoError(t, q.Enqueue(Job{Type: "attendance.backfill", Payload: "Y"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}

	mu.Lock()
	assert.Equal(t, []string{"X", "Y"}, seen)
	mu.Unlock()
	assert.Eventually(t, func() bool { return q.Stats().Processed == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, q.Stats().Running)
}

func TestQueueRetriesThenFails(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	q := NewQueue("retry", func(_ context.Context, job Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("store unavailable")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{Type: "attendance.backfill"}))

	assert.Eventually(t, func() bool { return q.Stats().Failed == 1 }, 2*time.Second, 5*time.Millisecond)
	stats := q.Stats()
	assert.EqualValues(t, 2, stats.Retried)
	assert.EqualValues(t, 0, stats.Processed)
	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestQueueStopIsIdempotent(t *testing.T) {
	q := NewQueue("stop", func(context.Context, Job) error { return nil }, QueueConfig{})
	q.Stop()
	q.Start(context.Background())
	q.Stop()
	q.Stop()
	assert.False(t, q.Stats().Running)
}
