package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/shmbroker/core/buffer"
	"github.com/dmitrymomot/shmbroker/core/logger"
	"github.com/dmitrymomot/shmbroker/core/shm"
	"github.com/dmitrymomot/shmbroker/core/topic"
)

// Stats is a snapshot of the broker.
type Stats struct {
	Buffers buffer.Stats
	Topics  topic.Stats
	Policy  topic.OverflowPolicy

	Published    int64 // Publish calls that reached at least one subscriber
	Discarded    int64 // Publish calls on topics without subscribers
	Delivered    int64 // Records enqueued across all subscribers
	Dropped      int64 // Records removed by queue overflow
	Pulled       int64 // Records handed to subscribers
	PullTimeouts int64
	PullCanceled int64
	Inconsistent int64 // Requests that hit an invariant violation
	GeneratedIDs uint64
}

// Service is the broker. Safe for concurrent use.
type Service struct {
	buffers *buffer.Table
	topics  *topic.Registry
	ids     IDGenerator
	closed  atomic.Bool

	published    atomic.Int64
	discarded    atomic.Int64
	delivered    atomic.Int64
	dropped      atomic.Int64
	pulled       atomic.Int64
	pullTimeouts atomic.Int64
	pullCanceled atomic.Int64
	inconsistent atomic.Int64

	clock      clock.Clock
	registerer prometheus.Registerer
	logger     *slog.Logger
}

func newService(opts []Option) *Service {
	s := &Service{
		clock:  clock.New(),
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New creates a broker over an existing buffer table and registry.
func New(buffers *buffer.Table, topics *topic.Registry, opts ...Option) (*Service, error) {
	if buffers == nil || topics == nil {
		return nil, ErrNilDependency
	}

	s := newService(opts)
	s.buffers = buffers
	s.topics = topics

	if err := s.register(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromConfig builds the buffer table and registry from cfg and returns a
// broker over them.
func NewFromConfig(cfg Config, alloc shm.Allocator, opts ...Option) (*Service, error) {
	policy, err := topic.ParseOverflowPolicy(cfg.OverflowPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	s := newService(opts)

	s.buffers, err = buffer.New(alloc,
		buffer.WithLogger(s.logger.With(logger.Component("buffers"))),
		buffer.WithPrefix(cfg.BufferPrefix),
		buffer.WithMaxSize(cfg.MaxBufferSize),
		buffer.WithReleasedCacheSize(cfg.ReleasedCacheSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer table: %w", err)
	}

	s.topics = topic.NewRegistry(
		topic.WithLogger(s.logger.With(logger.Component("topics"))),
		topic.WithOverflowPolicy(policy),
		topic.WithDefaultQueueSize(cfg.DefaultQueueSize),
		topic.WithAutoCreate(cfg.AutoCreateTopics),
		topic.WithClock(s.clock),
	)

	if err := s.register(); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateBuffer allocates a buffer of size bytes. The caller holds its only
// reference and must release it.
func (s *Service) CreateBuffer(ctx context.Context, size int64) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	id, err := s.buffers.Create(size)
	if err != nil {
		return "", s.fail(ctx, "CreateBuffer", err)
	}
	return id, nil
}

// GetBuffer returns the size of a live buffer.
func (s *Service) GetBuffer(ctx context.Context, name string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	size, err := s.buffers.Get(name)
	if err != nil {
		return 0, s.fail(ctx, "GetBuffer", err)
	}
	return size, nil
}

// ReleaseBuffer drops one reference. The region is freed with the last one.
func (s *Service) ReleaseBuffer(ctx context.Context, name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.buffers.Release(name); err != nil {
		return s.fail(ctx, "ReleaseBuffer", err)
	}
	return nil
}

// RegisterTopic creates a topic. Registering an existing topic succeeds.
func (s *Service) RegisterTopic(ctx context.Context, name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, _, err := s.topics.Register(name); err != nil {
		return s.fail(ctx, "RegisterTopic", err)
	}
	return nil
}

// GetSubscriberCount returns the number of subscribers on a registered topic.
func (s *Service) GetSubscriberCount(ctx context.Context, name string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	n, err := s.topics.SubscriberCount(name)
	if err != nil {
		return 0, s.fail(ctx, "GetSubscriberCount", err)
	}
	return n, nil
}

// Subscribe attaches a subscriber to a topic. With req.Wait set it waits for
// the topic to be registered and returns ErrPending if that does not happen in
// time.
func (s *Service) Subscribe(ctx context.Context, req topic.SubscribeRequest) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.topics.Subscribe(ctx, req); err != nil {
		return s.fail(ctx, "Subscribe", err)
	}
	return nil
}

// Publish fans rec out to every subscriber of the topic and returns how many
// subscribers received it. Each delivery holds its own buffer reference; the
// publisher keeps its own and releases it separately. Publishing to a topic
// without subscribers succeeds and delivers nothing.
func (s *Service) Publish(ctx context.Context, topicName string, rec topic.Record) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if rec.BufferID == "" {
		return 0, fmt.Errorf("%w: empty buffer name", ErrInvalidArgument)
	}

	t, err := s.topics.Resolve(topicName)
	if err != nil {
		return 0, s.fail(ctx, "Publish", err)
	}
	// existence check and retain share the topic critical section
	res, err := t.Publish(rec, func(n int) error {
		return s.buffers.AddRef(rec.BufferID, n)
	})
	if err != nil {
		return 0, s.fail(ctx, "Publish", err)
	}

	if res.Delivered == 0 {
		s.discarded.Add(1)
		s.logger.DebugContext(ctx, "publish without subscribers discarded",
			logger.Topic(topicName), logger.Buffer(rec.BufferID))
		return 0, nil
	}

	s.published.Add(1)
	s.delivered.Add(int64(res.Delivered))
	s.releaseDropped(ctx, res.Dropped)

	s.logger.DebugContext(ctx, "published",
		logger.Topic(topicName),
		logger.Buffer(rec.BufferID),
		logger.Count("subscribers", res.Delivered),
		logger.Count("dropped", len(res.Dropped)))

	return res.Delivered, nil
}

// Pull dequeues the next record for a subscriber, waiting up to timeout. A
// negative timeout waits until a record arrives or ctx ends; zero never waits.
// The caller owns one reference on the returned buffer.
func (s *Service) Pull(ctx context.Context, topicName string, sub topic.SubscriberID, timeout time.Duration) (topic.Record, error) {
	if err := s.checkOpen(); err != nil {
		return topic.Record{}, err
	}

	t, err := s.topics.Lookup(topicName)
	if err != nil {
		return topic.Record{}, s.fail(ctx, "Pull", err)
	}

	rec, err := t.Pull(ctx, sub, timeout)
	switch {
	case errors.Is(err, topic.ErrTimeout):
		s.pullTimeouts.Add(1)
		s.logger.DebugContext(ctx, "pull timed out",
			logger.Topic(topicName), logger.Subscriber(string(sub)), logger.Timeout(timeout))
		return topic.Record{}, s.fail(ctx, "Pull", err)
	case errors.Is(err, topic.ErrCanceled):
		s.pullCanceled.Add(1)
		return topic.Record{}, s.fail(ctx, "Pull", err)
	case err != nil:
		return topic.Record{}, s.fail(ctx, "Pull", err)
	}

	if ctx.Err() != nil {
		// nobody is left to take the record
		s.pullCanceled.Add(1)
		dropped, rqErr := t.Requeue(sub, rec)
		if rqErr != nil {
			s.logger.WarnContext(ctx, "failed to requeue canceled delivery",
				logger.Topic(topicName), logger.Subscriber(string(sub)), logger.Error(rqErr))
		}
		s.releaseDropped(ctx, dropped)
		return topic.Record{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}

	s.pulled.Add(1)
	return rec, nil
}

// GenerateID returns a process-unique subscriber id.
func (s *Service) GenerateID() uint64 {
	return s.ids.Next()
}

// ListTopics returns the registered topic names in sorted order.
func (s *Service) ListTopics(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.topics.Topics(), nil
}

// Stats returns a snapshot of the broker counters.
func (s *Service) Stats() Stats {
	return Stats{
		Buffers:      s.buffers.Stats(),
		Topics:       s.topics.Stats(),
		Policy:       s.topics.Policy(),
		Published:    s.published.Load(),
		Discarded:    s.discarded.Load(),
		Delivered:    s.delivered.Load(),
		Dropped:      s.dropped.Load(),
		Pulled:       s.pulled.Load(),
		PullTimeouts: s.pullTimeouts.Load(),
		PullCanceled: s.pullCanceled.Load(),
		Inconsistent: s.inconsistent.Load(),
		GeneratedIDs: s.ids.Last(),
	}
}

// Healthcheck reports whether the broker accepts requests.
// Suitable for readiness probes.
func (s *Service) Healthcheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return ctx.Err()
}

// Close stops the broker: blocked pulls return, queued deliveries are
// discarded and every shared-memory region is freed. Safe to call more than once.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	rest := s.topics.Close()
	if len(rest) > 0 {
		s.logger.Info("discarding queued deliveries", logger.Count("records", len(rest)))
	}

	if err := s.buffers.ReleaseAll(); err != nil {
		return fmt.Errorf("failed to release buffers: %w", err)
	}
	return nil
}

func (s *Service) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// releaseDropped returns the buffer references held by records that will
// never be delivered.
func (s *Service) releaseDropped(ctx context.Context, dropped []topic.Record) {
	for _, rec := range dropped {
		s.dropped.Add(1)
		if err := s.buffers.Release(rec.BufferID); err != nil {
			s.inconsistent.Add(1)
			s.logger.ErrorContext(ctx, "failed to release dropped delivery",
				logger.Buffer(rec.BufferID), logger.Error(err))
		}
	}
}

// fail maps err onto the broker taxonomy and logs invariant violations.
func (s *Service) fail(ctx context.Context, method string, err error) error {
	mapped := classify(err)
	if errors.Is(mapped, ErrInternal) {
		s.inconsistent.Add(1)
		s.logger.ErrorContext(ctx, "request failed on internal inconsistency",
			logger.Method(method), logger.Error(err))
	}
	return mapped
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrInternal):
		return err
	case errors.Is(err, buffer.ErrInconsistent):
		return fmt.Errorf("%w: %w", ErrInternal, err)
	case errors.Is(err, buffer.ErrNotFound),
		errors.Is(err, topic.ErrTopicNotFound),
		errors.Is(err, topic.ErrSubscriberNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, buffer.ErrAllocation):
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	case errors.Is(err, buffer.ErrInvalidSize),
		errors.Is(err, topic.ErrInvalidName),
		errors.Is(err, topic.ErrInvalidSubscriber):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case errors.Is(err, topic.ErrTimeout):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, topic.ErrPending):
		return fmt.Errorf("%w: %w", ErrPending, err)
	case errors.Is(err, topic.ErrCanceled):
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	case errors.Is(err, topic.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}
