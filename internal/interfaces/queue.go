package interfaces

import (
	"context"
	"time"
)

// JobMessage is the unit of work carried by the queue.
type JobMessage struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Payload map[string]string `json:"payload,omitempty"`

	// DedupID suppresses a second enqueue while a message with the same ID
	// is still pending. Used to keep concurrent refresh triggers from
	// stacking duplicate logins.
	DedupID string `json:"dedup_id,omitempty"`
}

// JobHandler processes a single job message. The supplied context carries the
// job's hard execution deadline; handlers must stop work when it is cancelled.
type JobHandler func(ctx context.Context, msg *JobMessage) error

// QueueManager is the persistence contract for the job queue.
type QueueManager interface {
	// Enqueue makes a message durable and immediately visible.
	Enqueue(ctx context.Context, msg JobMessage) error

	// Receive pulls the next visible message and hides it for the visibility
	// timeout. Returns ErrNoMessage when the queue is empty. The returned
	// delete function permanently removes the message.
	Receive(ctx context.Context) (*JobMessage, func() error, error)

	// Extend pushes a message's visibility deadline forward.
	Extend(ctx context.Context, id string, d time.Duration) error
}

// SchedulerService registers and drives periodic jobs.
type SchedulerService interface {
	RegisterJob(name, schedule, description string, handler func() error) error
	TriggerJob(name string) error
	Start() error
	Stop() error
	IsRunning() bool
}
