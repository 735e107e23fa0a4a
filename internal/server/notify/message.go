// Package notify delivers outbound account emails off the request path.
// A Dispatcher enqueues messages on a Queue and a pool of workers hands them
// to a Sender, re-queueing failed deliveries a bounded number of times.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/fxamacker/cbor/v2"
)

var (
	ErrQueueFull   = errors.New("notify: queue full")
	ErrQueueClosed = errors.New("notify: queue closed")
)

// Message is one email. It is the unit stored on the queue.
type Message struct {
	ID       string    `cbor:"id"`
	To       string    `cbor:"to"`
	Subject  string    `cbor:"subject"`
	Body     string    `cbor:"body"`
	Attempts int       `cbor:"attempts"`
	QueuedAt time.Time `cbor:"queued_at"`
}

// Sender performs the actual delivery.
type Sender interface {
	Deliver(ctx context.Context, msg Message) error
}

// Delivery is a message popped from a queue and not yet acknowledged.
type Delivery struct {
	Message
	raw []byte
}

// Queue is an at-least-once message queue.
type Queue interface {
	Push(ctx context.Context, msg Message) error
	// Pop blocks until a message is available, ctx is done or the queue is closed.
	Pop(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	// Recover returns deliveries left unacknowledged by a previous run to
	// the pending side and reports how many were moved.
	Recover(ctx context.Context) (int, error)
	Close() error
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	encMode, err = opts.EncMode()
	if err != nil {
		panic("notify: cbor encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("notify: cbor decoder: " + err.Error())
	}
}

func encode(msg Message) ([]byte, error) {
	return encMode.Marshal(msg)
}

func decode(raw []byte) (Message, error) {
	var msg Message
	err := decMode.Unmarshal(raw, &msg)
	return msg, err
}
