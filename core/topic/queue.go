package topic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Queue is a bounded FIFO of records for a single subscriber. Safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	items  []Record
	max    int
	policy OverflowPolicy
	notify chan struct{}
	closed bool
	clock  clock.Clock
}

// NewQueue creates an empty queue holding at most max records (0 = unbounded).
func NewQueue(max int, policy OverflowPolicy, clk clock.Clock) *Queue {
	if clk == nil {
		clk = clock.New()
	}
	if max < 0 {
		max = 0
	}
	return &Queue{
		max:    max,
		policy: policy,
		notify: make(chan struct{}),
		clock:  clk,
	}
}

// Max returns the capacity, 0 for unbounded.
func (q *Queue) Max() int {
	return q.max
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Push appends rec. If the queue is full the overflow policy picks a record to
// drop, which is returned with ok set. A closed queue drops rec.
func (q *Queue) Push(rec Record) (dropped Record, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return rec, true
	}

	if q.max > 0 && len(q.items) >= q.max {
		if q.policy == DropNewest {
			return rec, true
		}
		dropped, ok = q.items[0], true
		q.items[0] = Record{}
		q.items = q.items[1:]
	}

	q.items = append(q.items, rec)
	q.wake()

	return dropped, ok
}

// Requeue puts rec back at the head, for a delivery the caller could not hand
// over. If that overfills the queue the policy drops a record as in Push.
func (q *Queue) Requeue(rec Record) (dropped Record, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return rec, true
	}

	if q.max > 0 && len(q.items) >= q.max {
		if q.policy == DropOldest {
			// rec is older than everything queued
			return rec, true
		}
		last := len(q.items) - 1
		dropped, ok = q.items[last], true
		q.items = q.items[:last]
	}

	q.items = append([]Record{rec}, q.items...)
	q.wake()

	return dropped, ok
}

// TryPull dequeues the head without waiting.
func (q *Queue) TryPull() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

// Pull dequeues the head, waiting up to timeout for one to arrive. A negative
// timeout waits until a record arrives or ctx ends; zero never waits.
func (q *Queue) Pull(ctx context.Context, timeout time.Duration) (Record, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := q.clock.Timer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		q.mu.Lock()
		if rec, ok := q.pop(); ok {
			q.mu.Unlock()
			return rec, nil
		}
		if q.closed {
			q.mu.Unlock()
			return Record{}, ErrClosed
		}
		if timeout == 0 {
			q.mu.Unlock()
			return Record{}, ErrTimeout
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-wait:
		case <-expired:
			if rec, ok := q.TryPull(); ok {
				return rec, nil
			}
			return Record{}, ErrTimeout
		case <-ctx.Done():
			return Record{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		}
	}
}

// Close wakes every waiter with ErrClosed and returns the records still queued.
func (q *Queue) Close() []Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	rest := q.items
	q.items = nil
	q.wake()

	return rest
}

func (q *Queue) pop() (Record, bool) {
	if len(q.items) == 0 {
		return Record{}, false
	}
	rec := q.items[0]
	q.items[0] = Record{}
	q.items = q.items[1:]
	return rec, true
}

// wake releases every goroutine blocked in Pull. Caller holds q.mu.
func (q *Queue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}
