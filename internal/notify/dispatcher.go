package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Sender delivers a single report
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// Outcome is the result of a delivery attempt
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Dispatcher hands report jobs to a background worker. Every job gets at
// most one delivery attempt; failures are logged and never retried.
type Dispatcher struct {
	sender  Sender
	jobs    chan Job
	done    chan struct{}
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts a dispatcher with room for queueSize pending jobs
func NewDispatcher(sender Sender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 16
	}
	d := &Dispatcher{
		sender:  sender,
		jobs:    make(chan Job, queueSize),
		done:    make(chan struct{}),
		timeout: 2 * time.Minute,
	}
	go d.run()
	return d
}

// Enqueue queues a job without blocking. It returns false when the queue is
// full or the dispatcher is closed; the job is then dropped.
func (d *Dispatcher) Enqueue(job Job) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		slog.Warn("Notification dropped, dispatcher closed", "path", job.Path)
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		slog.Warn("Notification dropped, queue full", "path", job.Path)
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish or ctx to end
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for job := range d.jobs {
		d.Deliver(job)
	}
}

// Deliver makes the single delivery attempt for a job
func (d *Dispatcher) Deliver(job Job) Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.sender.Send(ctx, job)
	switch {
	case err == nil:
		slog.Info("Report emailed", "path", job.Path, "month", job.Month, "year", job.Year)
		return OutcomeSent
	case errors.Is(err, ErrNotConfigured):
		slog.Info("Email not configured, skipping notification", "path", job.Path)
		return OutcomeSkipped
	default:
		slog.Error("Failed to email report", "path", job.Path, "error", err)
		return OutcomeFailed
	}
}
