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

// SubscribeRequest describes a Subscribe call.
type SubscribeRequest struct {
	Topic        string
	Subscriber   SubscriberID
	MaxQueueSize int // 0 selects the registry default
	Depends      []SubscriberID

	// Wait blocks until the topic is registered, for at most WaitTimeout
	// (negative waits until ctx ends). A wait that runs out returns ErrPending.
	Wait        bool
	WaitTimeout time.Duration
}

// Stats is a snapshot of the registry.
type Stats struct {
	Topics      int
	Subscribers int
	Queued      int
}

// Registry owns every topic. Topics live until the registry is closed.
type Registry struct {
	mu         sync.RWMutex
	topics     map[string]*Topic
	registered chan struct{}
	closed     bool

	autoCreate       bool
	defaultQueueSize int
	policy           OverflowPolicy
	clock            clock.Clock
	logger           *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		topics:           make(map[string]*Topic),
		registered:       make(chan struct{}),
		defaultQueueSize: DefaultQueueSize,
		policy:           DropOldest,
		clock:            clock.New(),
		logger:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the overflow policy applied to subscriber queues.
func (r *Registry) Policy() OverflowPolicy { return r.policy }

// AutoCreate reports whether unknown topics are created on first use.
func (r *Registry) AutoCreate() bool { return r.autoCreate }

// Register creates the topic if it does not exist. Registering an existing
// topic succeeds with created set to false.
func (r *Registry) Register(name string) (*Topic, bool, error) {
	if name == "" {
		return nil, false, ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrClosed
	}
	if t, ok := r.topics[name]; ok {
		return t, false, nil
	}

	t := newTopic(name, r.policy, r.clock, r.logger)
	r.topics[name] = t

	// wake WaitFor callers
	close(r.registered)
	r.registered = make(chan struct{})

	r.logger.Info("topic registered", logger.Topic(name))

	return t, true, nil
}

// Lookup returns a registered topic.
func (r *Registry) Lookup(name string) (*Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}
	t, ok := r.topics[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, name)
	}
	return t, nil
}

// Resolve returns the topic, creating it first when auto-create is enabled.
func (r *Registry) Resolve(name string) (*Topic, error) {
	if r.autoCreate {
		t, _, err := r.Register(name)
		return t, err
	}
	return r.Lookup(name)
}

// WaitFor blocks until the topic is registered. A negative timeout waits until
// ctx ends; otherwise ErrPending is returned once timeout elapses.
func (r *Registry) WaitFor(ctx context.Context, name string, timeout time.Duration) (*Topic, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := r.clock.Timer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		r.mu.RLock()
		t, ok := r.topics[name]
		closed := r.closed
		wait := r.registered
		r.mu.RUnlock()

		switch {
		case ok:
			return t, nil
		case closed:
			return nil, ErrClosed
		case timeout == 0:
			return nil, fmt.Errorf("%w: %s", ErrPending, name)
		}

		select {
		case <-wait:
		case <-expired:
			return nil, fmt.Errorf("%w: %s", ErrPending, name)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		}
	}
}

// Subscribe attaches a subscriber to a topic. Subscribing an existing
// subscriber again is a no-op that returns the existing entry.
func (r *Registry) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscriber, error) {
	if req.Topic == "" {
		return nil, ErrInvalidName
	}
	if req.Subscriber == "" || req.MaxQueueSize < 0 {
		return nil, fmt.Errorf("%w: id %q, max queue size %d", ErrInvalidSubscriber, req.Subscriber, req.MaxQueueSize)
	}

	var (
		t   *Topic
		err error
	)
	switch {
	case r.autoCreate:
		t, _, err = r.Register(req.Topic)
	case req.Wait:
		t, err = r.WaitFor(ctx, req.Topic, req.WaitTimeout)
	default:
		t, err = r.Lookup(req.Topic)
	}
	if err != nil {
		return nil, err
	}

	maxQueue := req.MaxQueueSize
	if maxQueue == 0 {
		maxQueue = r.defaultQueueSize
	}

	s, created, err := t.subscribe(req.Subscriber, maxQueue, req.Depends)
	if err != nil {
		return nil, err
	}
	if created {
		r.logger.Info("subscriber attached",
			logger.Topic(req.Topic),
			logger.Subscriber(string(req.Subscriber)),
			logger.Count("max_queue_size", maxQueue))
	}

	return s, nil
}

// SubscriberCount returns the number of subscribers on a registered topic.
func (r *Registry) SubscriberCount(name string) (int, error) {
	t, err := r.Lookup(name)
	if err != nil {
		return 0, err
	}
	return t.SubscriberCount(), nil
}

// Topics returns the registered topic names in sorted order.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Stats returns topic, subscriber and queued record counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	topics := make([]*Topic, 0, len(r.topics))
	for _, t := range r.topics {
		topics = append(topics, t)
	}
	r.mu.RUnlock()

	stats := Stats{Topics: len(topics)}
	for _, t := range topics {
		stats.Subscribers += t.SubscriberCount()
		stats.Queued += t.queued()
	}
	return stats
}

// Close shuts every topic, wakes blocked Pull and WaitFor callers, and returns
// the records that were still queued so their buffers can be released.
func (r *Registry) Close() []Record {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	topics := r.topics
	close(r.registered)
	r.registered = make(chan struct{})
	r.mu.Unlock()

	var rest []Record
	for _, t := range topics {
		rest = append(rest, t.close()...)
	}
	return rest
}
