// Package worker runs background tasks one at a time in submission order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrClosed = errors.New("worker queue closed")

// Task is a unit of background work. ctx is cancelled when the queue is
// closed; long tasks should check it.
type Task func(ctx context.Context)

// Queue is a sequential executor backed by a single goroutine. Tasks
// submitted before Close still run, with a cancelled context.
type Queue struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []Task
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func NewQueue(name string) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues t. It never blocks.
func (q *Queue) Submit(t Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, t)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Run submits fn and waits for its result. If ctx ends first Run returns
// ctx.Err() and fn still runs later.
func (q *Queue) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	err := q.Submit(func(qctx context.Context) {
		result <- fn(qctx)
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len is the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting tasks and cancels the queue context. It is safe
// to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	q.signal()
}

// Done is closed when the goroutine has drained the queue and exited.
func (q *Queue) Done() <-chan struct{} { return q.done }

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				slog.Debug("worker queue stopped", "queue", q.name)
				return
			}
			<-q.wake
			continue
		}
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.runTask(t); err != nil {
			slog.Error("worker task failed", "queue", q.name, "error", err)
		}
	}
}

func (q *Queue) runTask(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	t(q.ctx)
	return nil
}
