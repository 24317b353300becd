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
	done := make(chan struct{}, 1)

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "notification"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"job-1"}, seen)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	attempts := make(chan int, 8)

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		attempts <- job.Attempt
		if job.Attempt < 1 {
			return errors.New("transient failure")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	first := <-attempts
	assert.Equal(t, 0, first)

	select {
	case second := <-attempts:
		assert.Equal(t, 1, second)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "job-1"}))
}

func TestQueueStopFlushesBufferedJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	release := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if job.ID == "job-1" {
			<-release
		}
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	require.NoError(t, q.Enqueue(Job{ID: "job-2"}))
	require.NoError(t, q.Enqueue(Job{ID: "job-3"}))

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	// The single worker is parked inside job-1, so job-2 and job-3 are still
	// buffered when Stop begins. Releasing the worker lets shutdown finish.
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not stop in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
	assert.Equal(t, "job-1", seen[0])
}
