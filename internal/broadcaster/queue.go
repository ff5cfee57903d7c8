package broadcaster

import (
	"context"
	"sync"
)

const compactMin = 32

// queue is an unbounded FIFO with a single consumer. push never blocks.
type queue struct {
	mu     sync.Mutex
	items  [][]byte
	head   int
	closed bool
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

// push appends b and reports the new depth. It returns false once closed.
func (q *queue) push(b []byte) (int, bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, false
	}
	q.items = append(q.items, b)
	n := len(q.items) - q.head
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return n, true
}

// pop blocks until an item is available, the queue is closed, or ctx is done.
func (q *queue) pop(ctx context.Context) ([]byte, bool) {
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			b := q.items[q.head]
			q.items[q.head] = nil
			q.head++
			switch {
			case q.head == len(q.items):
				q.items = q.items[:0]
				q.head = 0
			case q.head >= compactMin && q.head*2 >= len(q.items):
				// Slide live items down so a queue that never fully drains
				// does not keep growing its backing array.
				n := copy(q.items, q.items[q.head:])
				clear(q.items[n:])
				q.items = q.items[:n]
				q.head = 0
			}
			q.mu.Unlock()
			return b, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.notify:
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
