package chathub

import (
	"sync"

	"chatrelay/backend/internal/models"
)

type presenceJob struct {
	userID string
	status models.Status
}

// jobQueue is an unbounded FIFO. push never blocks, so the run-loop can hand work to
// the presence worker without waiting on it.
type jobQueue struct {
	mu     sync.Mutex
	items  []presenceJob
	signal chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{signal: make(chan struct{}, 1)}
}

func (q *jobQueue) push(job presenceJob) {
	q.mu.Lock()
	q.items = append(q.items, job)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *jobQueue) drain() []presenceJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
