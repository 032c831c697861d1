package topic

import (
	"log/slog"

	"github.com/benbjohnson/clock"
)

// DefaultQueueSize is used when a subscriber does not ask for a size.
const DefaultQueueSize = 2

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for registry and topic events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOverflowPolicy sets the policy applied by every subscriber queue.
func WithOverflowPolicy(policy OverflowPolicy) Option {
	return func(r *Registry) {
		r.policy = policy
	}
}

// WithDefaultQueueSize sets the queue size for subscribers that pass 0.
// A value of 0 makes such queues unbounded.
func WithDefaultQueueSize(n int) Option {
	return func(r *Registry) {
		if n >= 0 {
			r.defaultQueueSize = n
		}
	}
}

// WithAutoCreate makes Subscribe and Publish create unknown topics instead of
// failing with ErrTopicNotFound.
func WithAutoCreate(enabled bool) Option {
	return func(r *Registry) {
		r.autoCreate = enabled
	}
}

// WithClock replaces the clock used for queue timeouts and registration waits.
func WithClock(clk clock.Clock) Option {
	return func(r *Registry) {
		if clk != nil {
			r.clock = clk
		}
	}
}
