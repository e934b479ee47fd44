package queue

import (
	"context"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g2i/hub/internal/interfaces"
)

func setupQueue(t *testing.T, visibilityTimeout time.Duration, maxReceive int) *Manager {
	t.Helper()

	opts := badgerdb.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := NewManager(db, "test", visibilityTimeout, maxReceive)
	require.NoError(t, err)
	return m
}

func TestQueueEnqueueReceive(t *testing.T) {
	m := setupQueue(t, time.Minute, 3)
	ctx := context.Background()

	msg := interfaces.JobMessage{
		Type:    "job",
		Payload: map[string]string{"url": "https://example.com"},
	}
	require.NoError(t, m.Enqueue(ctx, msg))

	received, deleteFn, err := m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job", received.Type)
	assert.Equal(t, "https://example.com", received.Payload["url"])
	assert.NotEmpty(t, received.ID)

	require.NoError(t, deleteFn())

	_, _, err = m.Receive(ctx)
	assert.ErrorIs(t, err, interfaces.ErrNoMessage)
}

func TestQueueEmptyReceive(t *testing.T) {
	m := setupQueue(t, time.Minute, 3)

	_, _, err := m.Receive(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrNoMessage)
}

func TestQueueVisibilityTimeoutHidesMessage(t *testing.T) {
	m := setupQueue(t, time.Minute, 3)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, interfaces.JobMessage{Type: "job"}))

	_, _, err := m.Receive(ctx)
	require.NoError(t, err)

	// Message is in flight; a second receive must come up empty
	_, _, err = m.Receive(ctx)
	assert.ErrorIs(t, err, interfaces.ErrNoMessage)
}

func TestQueueRedeliveryAfterVisibilityTimeout(t *testing.T) {
	m := setupQueue(t, 50*time.Millisecond, 3)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, interfaces.JobMessage{ID: "m1", Type: "job"}))

	_, _, err := m.Receive(ctx)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	redelivered, deleteFn, err := m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m1", redelivered.ID)
	require.NoError(t, deleteFn())
}

func TestQueuePoisonMessageDropped(t *testing.T) {
	m := setupQueue(t, time.Millisecond, 2)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, interfaces.JobMessage{ID: "poison", Type: "job"}))

	for i := 0; i < 2; i++ {
		_, _, err := m.Receive(ctx)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	// Third receive exceeds maxReceive and drops the message
	_, _, err := m.Receive(ctx)
	assert.ErrorIs(t, err, interfaces.ErrNoMessage)
}

func TestQueueDedupSuppressesDuplicate(t *testing.T) {
	m := setupQueue(t, time.Minute, 3)
	ctx := context.Background()

	first := interfaces.JobMessage{Type: "refresh", DedupID: "refresh-lock"}
	second := interfaces.JobMessage{Type: "refresh", DedupID: "refresh-lock"}

	require.NoError(t, m.Enqueue(ctx, first))
	require.NoError(t, m.Enqueue(ctx, second))

	_, deleteFn, err := m.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, deleteFn())

	// Only one message should have landed
	_, _, err = m.Receive(ctx)
	assert.ErrorIs(t, err, interfaces.ErrNoMessage)
}

func TestQueueDedupReleasedAfterDelete(t *testing.T) {
	m := setupQueue(t, time.Minute, 3)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, interfaces.JobMessage{Type: "refresh", DedupID: "lock"}))

	_, deleteFn, err := m.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, deleteFn())

	// Once the first completes, the same dedup ID may be enqueued again
	require.NoError(t, m.Enqueue(ctx, interfaces.JobMessage{Type: "refresh", DedupID: "lock"}))

	received, deleteFn, err := m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh", received.Type)
	require.NoError(t, deleteFn())
}

func TestQueueExtendKeepsMessageHidden(t *testing.T) {
	m := setupQueue(t, 50*time.Millisecond, 3)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, interfaces.JobMessage{ID: "slow", Type: "job"}))

	received, deleteFn, err := m.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Extend(ctx, received.ID, time.Minute))

	time.Sleep(100 * time.Millisecond)

	// The first visibility window elapsed but the extension holds
	_, _, err = m.Receive(ctx)
	assert.ErrorIs(t, err, interfaces.ErrNoMessage)

	require.NoError(t, deleteFn())
}

func TestQueueOrderedDelivery(t *testing.T) {
	m := setupQueue(t, time.Minute, 3)
	ctx := context.Background()

	require.NoError(t, m.Enqueue(ctx, interfaces.JobMessage{ID: "first", Type: "job"}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.Enqueue(ctx, interfaces.JobMessage{ID: "second", Type: "job"}))

	received, deleteFn, err := m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", received.ID)
	require.NoError(t, deleteFn())

	received, deleteFn, err = m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", received.ID)
	require.NoError(t, deleteFn())
}
