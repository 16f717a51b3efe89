package engine

import (
	"sync"
	"time"
)

// RequestKind distinguishes queued engine operations.
type RequestKind int

const (
	// RequestAdd ingests one signal.
	RequestAdd RequestKind = iota + 1
	// RequestFuse runs one fusion round.
	RequestFuse
	// RequestEvictOlderThan evicts signals older than MaxAge.
	RequestEvictOlderThan
	// RequestEvictToCapacity evicts the oldest signals beyond Capacity.
	RequestEvictToCapacity
)

// String returns the operation name used in logs.
func (k RequestKind) String() string {
	switch k {
	case RequestAdd:
		return "add"
	case RequestFuse:
		return "fuse"
	case RequestEvictOlderThan:
		return "evict_older_than"
	case RequestEvictToCapacity:
		return "evict_to_capacity"
	default:
		return "unknown"
	}
}

// Request is one queued engine operation. Only the field matching Kind is read.
type Request struct {
	Kind     RequestKind
	Signal   SignalInput
	MaxAge   time.Duration
	Capacity int
}

// requestQueue is a thread-safe FIFO queue for requests.
//
// The queue is unbounded so producers never block. Any goroutine may
// enqueue; only the Ingestor's Run loop dequeues.
//
// A buffered signal channel lets Run wait on both new work and context
// cancellation.
type requestQueue struct {
	mu       sync.Mutex
	requests []Request
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]Request, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	// Non-blocking: the buffer of 1 coalesces wakeups.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front request without blocking.
func (q *requestQueue) TryDequeue() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return Request{}, false
	}

	r := q.requests[0]
	// Clear the slot so feature and metadata slices can be collected.
	q.requests[0] = Request{}
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

// Wait returns a channel that fires when requests may be available.
// It is closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close stops further enqueues and wakes the waiter.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
