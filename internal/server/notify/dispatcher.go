package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/google/uuid"
)

const (
	DefaultWorkers     = 2
	DefaultMaxAttempts = 5
)

// Dispatcher is the fire-and-forget front of the notification pipeline.
type Dispatcher struct {
	queue       Queue
	sender      Sender
	logger      logging.Logger
	workers     int
	maxAttempts int
	now         func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

func NewDispatcher(q Queue, s Sender, logger logging.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:       q,
		sender:      s,
		logger:      logger.With("module", "notify"),
		workers:     DefaultWorkers,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send enqueues an email and returns without waiting for delivery.
func (d *Dispatcher) Send(ctx context.Context, to, subject, body string) error {
	msg := Message{
		ID:       uuid.NewString(),
		To:       to,
		Subject:  subject,
		Body:     body,
		QueuedAt: d.now().UTC(),
	}
	return d.queue.Push(ctx, msg)
}

// Run recovers unacknowledged messages, then delivers until ctx is done or
// the queue is closed. It returns after all workers have exited.
func (d *Dispatcher) Run(ctx context.Context) error {
	n, err := d.queue.Recover(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		d.logger.Info(ctx, "recovered unacknowledged notifications", "count", n)
	}

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.work(ctx, worker)
		}(i)
	}
	wg.Wait()
	return nil
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	for {
		del, err := d.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			d.logger.Error(ctx, "pop notification", "worker", worker, "error", err)
			continue
		}
		d.deliver(ctx, del)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, del *Delivery) {
	err := d.sender.Deliver(ctx, del.Message)
	if err != nil {
		next := del.Message
		next.Attempts++
		if next.Attempts >= d.maxAttempts {
			d.logger.Error(ctx, "notification dropped", "id", next.ID, "attempts", next.Attempts, "error", err)
		} else {
			d.logger.Warn(ctx, "notification delivery failed, requeueing", "id", next.ID, "attempts", next.Attempts, "error", err)
			if perr := d.queue.Push(ctx, next); perr != nil {
				d.logger.Error(ctx, "requeue notification", "id", next.ID, "error", perr)
			}
		}
	}
	if aerr := d.queue.Ack(ctx, del); aerr != nil {
		d.logger.Error(ctx, "ack notification", "id", del.ID, "error", aerr)
	}
}
