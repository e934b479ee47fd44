package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/common"
	"github.com/g2i/hub/internal/interfaces"
)

// fakeQueue hands out a fixed slice of messages and records deletions
type fakeQueue struct {
	mu       sync.Mutex
	messages []interfaces.JobMessage
	deleted  []string
}

func (f *fakeQueue) Enqueue(ctx context.Context, msg interfaces.JobMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeQueue) Receive(ctx context.Context) (*interfaces.JobMessage, func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil, nil, interfaces.ErrNoMessage
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	deleteFn := func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deleted = append(f.deleted, msg.ID)
		return nil
	}
	return &msg, deleteFn, nil
}

func (f *fakeQueue) Extend(ctx context.Context, id string, d time.Duration) error {
	return nil
}

func (f *fakeQueue) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func workerTestConfig() common.QueueConfig {
	return common.QueueConfig{
		PollInterval: 10 * time.Millisecond,
		Concurrency:  1,
		MaxReceive:   3,
		JobTimeout:   time.Second,
		RetryDelay:   time.Millisecond,
	}
}

func TestWorkerProcessesMessage(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, q.Enqueue(context.Background(), interfaces.JobMessage{ID: "m1", Type: "work"}))

	pool := NewWorkerPool(q, workerTestConfig(), arbor.NewLogger())

	var handled int
	pool.RegisterHandler("work", func(ctx context.Context, msg *interfaces.JobMessage) error {
		handled++
		return nil
	})

	require.NoError(t, pool.processMessage(0))
	assert.Equal(t, 1, handled)
	assert.Equal(t, []string{"m1"}, q.deletedIDs())
}

func TestWorkerRetriesThenGivesUp(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, q.Enqueue(context.Background(), interfaces.JobMessage{ID: "m1", Type: "flaky"}))

	pool := NewWorkerPool(q, workerTestConfig(), arbor.NewLogger())

	var attempts int
	pool.RegisterHandler("flaky", func(ctx context.Context, msg *interfaces.JobMessage) error {
		attempts++
		return errors.New("transient failure")
	})

	err := pool.processMessage(0)
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "retry up to the configured bound")
	// The message is still deleted - the outcome was recorded by the handler
	assert.Equal(t, []string{"m1"}, q.deletedIDs())
}

func TestWorkerRetryStopsOnSuccess(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, q.Enqueue(context.Background(), interfaces.JobMessage{ID: "m1", Type: "flaky"}))

	pool := NewWorkerPool(q, workerTestConfig(), arbor.NewLogger())

	var attempts int
	pool.RegisterHandler("flaky", func(ctx context.Context, msg *interfaces.JobMessage) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient failure")
		}
		return nil
	})

	require.NoError(t, pool.processMessage(0))
	assert.Equal(t, 2, attempts)
}

func TestWorkerDoesNotRetryConfigurationErrors(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, q.Enqueue(context.Background(), interfaces.JobMessage{ID: "m1", Type: "work"}))

	pool := NewWorkerPool(q, workerTestConfig(), arbor.NewLogger())

	var attempts int
	pool.RegisterHandler("work", func(ctx context.Context, msg *interfaces.JobMessage) error {
		attempts++
		return interfaces.ErrNotConfigured
	})

	err := pool.processMessage(0)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "missing credentials never improve on retry")
}

func TestWorkerEnforcesJobTimeout(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, q.Enqueue(context.Background(), interfaces.JobMessage{ID: "m1", Type: "slow"}))

	cfg := workerTestConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	pool := NewWorkerPool(q, cfg, arbor.NewLogger())

	pool.RegisterHandler("slow", func(ctx context.Context, msg *interfaces.JobMessage) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := pool.processMessage(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "timeout must cut the job short")
	// Timed-out messages are terminal, not retried
	assert.Equal(t, []string{"m1"}, q.deletedIDs())
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, q.Enqueue(context.Background(), interfaces.JobMessage{ID: "m1", Type: "panicky"}))

	pool := NewWorkerPool(q, workerTestConfig(), arbor.NewLogger())

	pool.RegisterHandler("panicky", func(ctx context.Context, msg *interfaces.JobMessage) error {
		panic("boom")
	})

	err := pool.processMessage(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, []string{"m1"}, q.deletedIDs())
}

func TestWorkerDeletesUnknownJobType(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, q.Enqueue(context.Background(), interfaces.JobMessage{ID: "m1", Type: "mystery"}))

	pool := NewWorkerPool(q, workerTestConfig(), arbor.NewLogger())

	err := pool.processMessage(0)
	require.Error(t, err)
	assert.Equal(t, []string{"m1"}, q.deletedIDs())
}

func TestWorkerPoolStartStop(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, q.Enqueue(context.Background(), interfaces.JobMessage{ID: "m1", Type: "work"}))

	pool := NewWorkerPool(q, workerTestConfig(), arbor.NewLogger())

	done := make(chan struct{})
	var once sync.Once
	pool.RegisterHandler("work", func(ctx context.Context, msg *interfaces.JobMessage) error {
		once.Do(func() { close(done) })
		return nil
	})

	require.NoError(t, pool.Start())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool never picked up the message")
	}

	require.NoError(t, pool.Stop())
}
