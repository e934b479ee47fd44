package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/common"
	"github.com/g2i/hub/internal/interfaces"
)

// WorkerPool pulls messages from the queue and runs registered handlers.
// Each job executes in its own worker slot under a hard wall-clock ceiling,
// with bounded retry on unexpected failure. Handler errors are converted to
// status-record updates by the handlers themselves - the pool never crashes
// the process.
type WorkerPool struct {
	manager  interfaces.QueueManager
	handlers map[string]interfaces.JobHandler
	config   common.QueueConfig
	logger   arbor.ILogger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(manager interfaces.QueueManager, config common.QueueConfig, logger arbor.ILogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		manager:  manager,
		handlers: make(map[string]interfaces.JobHandler),
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler registers a job type handler
func (wp *WorkerPool) RegisterHandler(jobType string, handler interfaces.JobHandler) {
	wp.handlers[jobType] = handler
	wp.logger.Debug().Str("job_type", jobType).Msg("Job handler registered")
}

// Start launches the worker goroutines
func (wp *WorkerPool) Start() error {
	wp.logger.Info().
		Int("concurrency", wp.config.Concurrency).
		Dur("poll_interval", wp.config.PollInterval).
		Msg("Starting worker pool")

	for i := 0; i < wp.config.Concurrency; i++ {
		go wp.worker(i)
	}
	return nil
}

// Stop cancels all workers and any in-flight job contexts
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	return nil
}

func (wp *WorkerPool) worker(workerID int) {
	// Stagger worker starts to spread polls across the interval
	stagger := (wp.config.PollInterval / time.Duration(wp.config.Concurrency)) * time.Duration(workerID)
	if stagger > 0 {
		select {
		case <-time.After(stagger):
		case <-wp.ctx.Done():
			return
		}
	}

	wp.logger.Debug().Int("worker_id", workerID).Msg("Worker started")

	ticker := time.NewTicker(wp.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Int("worker_id", workerID).Msg("Worker stopped")
			return
		case <-ticker.C:
			if err := wp.processMessage(workerID); err != nil && !errors.Is(err, interfaces.ErrNoMessage) {
				wp.logger.Warn().
					Err(err).
					Int("worker_id", workerID).
					Msg("Error processing message")
			}
		}
	}
}

func (wp *WorkerPool) processMessage(workerID int) error {
	msg, deleteFn, err := wp.manager.Receive(wp.ctx)
	if err != nil {
		return err
	}

	handler, exists := wp.handlers[msg.Type]
	if !exists {
		wp.logger.Error().
			Str("type", msg.Type).
			Str("message_id", msg.ID).
			Msg("No handler registered for job type")
		if delErr := deleteFn(); delErr != nil {
			wp.logger.Warn().Err(delErr).Msg("Failed to delete unknown job type message")
		}
		return fmt.Errorf("no handler for job type: %s", msg.Type)
	}

	wp.logger.Debug().
		Str("message_id", msg.ID).
		Str("type", msg.Type).
		Int("worker_id", workerID).
		Msg("Processing message")

	start := time.Now()
	handlerErr := wp.execute(handler, msg)
	duration := time.Since(start)

	if handlerErr != nil {
		wp.logger.Error().
			Err(handlerErr).
			Str("message_id", msg.ID).
			Str("type", msg.Type).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Job failed")
	} else {
		wp.logger.Info().
			Str("message_id", msg.ID).
			Str("type", msg.Type).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Job completed")
	}

	// Terminal either way - the handler already recorded the outcome
	if err := deleteFn(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Msg("Failed to delete processed message")
		return err
	}
	return handlerErr
}

// execute runs a handler under the hard time ceiling with bounded retry and
// panic recovery. The retry here covers transient/unexpected failures and is
// distinct from any single-shot re-auth retry inside the handler itself.
func (wp *WorkerPool) execute(handler interfaces.JobHandler, msg *interfaces.JobMessage) error {
	var lastErr error

	maxAttempts := wp.config.MaxReceive
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = wp.attempt(handler, msg)
		if lastErr == nil {
			return nil
		}

		// Configuration errors and timeouts do not become better on retry
		if errors.Is(lastErr, interfaces.ErrNotConfigured) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}

		if attempt < maxAttempts {
			wp.logger.Warn().
				Err(lastErr).
				Str("message_id", msg.ID).
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Msg("Job attempt failed, retrying")
			select {
			case <-time.After(wp.config.RetryDelay):
			case <-wp.ctx.Done():
				return lastErr
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// attempt runs the handler once under the job timeout with panic recovery
func (wp *WorkerPool) attempt(handler interfaces.JobHandler, msg *interfaces.JobMessage) (err error) {
	jobCtx, cancel := context.WithTimeout(wp.ctx, wp.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Str("message_id", msg.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Panic recovered in job execution")
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- handler(jobCtx, msg)
	}()

	select {
	case err = <-done:
		return err
	case <-jobCtx.Done():
		// The handler observes the cancelled context and must release its
		// own resources (browser session teardown runs on this path too).
		return fmt.Errorf("job timed out after %s: %w", wp.config.JobTimeout, jobCtx.Err())
	}
}
