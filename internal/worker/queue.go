// Package worker dispatches sampling tasks to a fixed pool of goroutines and
// funnels their progress back to a single consumer.
package worker

import (
	"errors"
	"sync"

	"github.com/maauso/video-sampler/internal/metrics"
	"github.com/maauso/video-sampler/internal/sampler"
)

// ErrQueueClosed is returned when pushing to a closed queue.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded multi-producer, multi-consumer FIFO of tasks.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []sampler.Task
	closed bool
}

// NewQueue creates an empty, open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends task to the tail. It never blocks.
func (q *Queue) Push(task sampler.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, task)
	metrics.QueueDepth.Set(float64(len(q.items)))
	q.cond.Signal()
	return nil
}

// Pop removes and returns the head, blocking while the queue is empty.
// It returns false once the queue is closed and drained.
func (q *Queue) Pop() (sampler.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return sampler.Task{}, false
	}

	task := q.items[0]
	q.items[0] = sampler.Task{}
	q.items = q.items[1:]
	metrics.QueueDepth.Set(float64(len(q.items)))
	return task, true
}

// Close stops accepting tasks. Queued tasks are still handed out.
// Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
