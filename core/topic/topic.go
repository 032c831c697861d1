package topic

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dmitrymomot/shmbroker/core/logger"
)

// Subscriber is a consumer attached to one topic.
type Subscriber struct {
	id      SubscriberID
	depends []SubscriberID
	queue   *Queue
}

// ID returns the subscriber identity.
func (s *Subscriber) ID() SubscriberID { return s.id }

// Depends returns the subscribers this one declared it is ordered after.
// The broker records the list but does not act on it.
func (s *Subscriber) Depends() []SubscriberID { return slices.Clone(s.depends) }

// Queue returns the subscriber's delivery queue.
func (s *Subscriber) Queue() *Queue { return s.queue }

// PublishResult reports the outcome of one fan-out.
type PublishResult struct {
	// Delivered is the number of subscribers the record was fanned out to,
	// including those whose queue then dropped a record.
	Delivered int

	// Dropped holds records removed by overflow handling. Each one carries a
	// buffer reference that the caller must release.
	Dropped []Record
}

// Topic is a named channel with a set of subscribers.
type Topic struct {
	name string

	mu          sync.Mutex
	subscribers map[SubscriberID]*Subscriber
	order       []*Subscriber
	closed      bool

	policy OverflowPolicy
	clock  clock.Clock
	logger *slog.Logger
}

func newTopic(name string, policy OverflowPolicy, clk clock.Clock, log *slog.Logger) *Topic {
	return &Topic{
		name:        name,
		subscribers: make(map[SubscriberID]*Subscriber),
		policy:      policy,
		clock:       clk,
		logger:      log.With(logger.Topic(name)),
	}
}

// Name returns the topic name.
func (t *Topic) Name() string { return t.name }

// SubscriberCount returns the number of attached subscribers.
func (t *Topic) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Subscriber looks up an attached subscriber.
func (t *Topic) Subscriber(id SubscriberID) (*Subscriber, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.subscribers[id]
	return s, ok
}

// Subscribers returns the attached subscriber ids in subscription order.
func (t *Topic) Subscribers() []SubscriberID {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]SubscriberID, len(t.order))
	for i, s := range t.order {
		ids[i] = s.id
	}
	return ids
}

// subscribe attaches id or returns the existing subscriber. Re-subscribing
// keeps the existing queue and its pending records.
func (t *Topic) subscribe(id SubscriberID, maxQueue int, depends []SubscriberID) (*Subscriber, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, false, ErrClosed
	}

	if s, ok := t.subscribers[id]; ok {
		if s.queue.Max() != maxQueue {
			t.logger.Debug("ignoring queue size change on re-subscribe",
				logger.Subscriber(string(id)),
				logger.Count("max_queue_size", s.queue.Max()),
				logger.Count("requested", maxQueue))
		}
		return s, false, nil
	}

	s := &Subscriber{
		id:      id,
		depends: slices.Clone(depends),
		queue:   NewQueue(maxQueue, t.policy, t.clock),
	}
	t.subscribers[id] = s
	t.order = append(t.order, s)

	if len(depends) > 0 {
		t.logger.Debug("subscriber declared dependencies",
			logger.Subscriber(string(id)), logger.Count("dependencies", len(depends)))
	}

	return s, true, nil
}

// Publish fans rec out to every subscriber. retain is called once, under the
// topic lock, with the number of subscribers before any queue is touched; if
// it fails nothing is enqueued. With no subscribers retain still runs with
// n == 0, so it can reject the record, and the record is then discarded.
func (t *Topic) Publish(rec Record, retain func(n int) error) (PublishResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return PublishResult{}, ErrClosed
	}

	n := len(t.order)
	if retain != nil {
		if err := retain(n); err != nil {
			return PublishResult{}, err
		}
	}
	if n == 0 {
		return PublishResult{}, nil
	}

	res := PublishResult{Delivered: n}
	for _, s := range t.order {
		if dropped, ok := s.queue.Push(rec); ok {
			res.Dropped = append(res.Dropped, dropped)
			t.logger.Warn("subscriber queue full, record dropped",
				logger.Subscriber(string(s.id)),
				logger.Buffer(dropped.BufferID),
				logger.Result(t.policy.String()))
		}
	}

	return res, nil
}

// Pull dequeues the next record for id. See Queue.Pull for timeout semantics.
func (t *Topic) Pull(ctx context.Context, id SubscriberID, timeout time.Duration) (Record, error) {
	s, ok := t.Subscriber(id)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s on %s", ErrSubscriberNotFound, id, t.name)
	}
	return s.queue.Pull(ctx, timeout)
}

// Requeue returns rec to the head of id's queue. The returned records were
// dropped to make room and their buffer references must be released.
func (t *Topic) Requeue(id SubscriberID, rec Record) ([]Record, error) {
	s, ok := t.Subscriber(id)
	if !ok {
		return []Record{rec}, fmt.Errorf("%w: %s on %s", ErrSubscriberNotFound, id, t.name)
	}
	if dropped, ok := s.queue.Requeue(rec); ok {
		return []Record{dropped}, nil
	}
	return nil, nil
}

// queued returns the total number of records waiting across subscribers.
func (t *Topic) queued() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, s := range t.order {
		total += s.queue.Len()
	}
	return total
}

// close shuts every queue and returns the records they held.
func (t *Topic) close() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var rest []Record
	for _, s := range t.order {
		rest = append(rest, s.queue.Close()...)
	}
	return rest
}
