package topic

import "errors"

var (
	// ErrTopicNotFound is returned when a topic has not been registered.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrSubscriberNotFound is returned when a subscriber is not attached to the topic.
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrInvalidName is returned for empty topic names.
	ErrInvalidName = errors.New("invalid topic name")

	// ErrInvalidSubscriber is returned for empty subscriber ids or negative queue sizes.
	ErrInvalidSubscriber = errors.New("invalid subscriber")

	// ErrTimeout is returned when Pull finds no record within its timeout.
	ErrTimeout = errors.New("pull timed out")

	// ErrPending is returned when a topic is still not registered after a bounded wait.
	// Callers may retry.
	ErrPending = errors.New("topic registration pending")

	// ErrCanceled is returned when the caller's context ends a wait.
	ErrCanceled = errors.New("wait canceled")

	// ErrClosed is returned by queues and registries that have been shut down.
	ErrClosed = errors.New("topic registry closed")

	// ErrUnknownPolicy is returned when parsing an unrecognized overflow policy.
	ErrUnknownPolicy = errors.New("unknown overflow policy")
)
