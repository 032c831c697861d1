// Package topic implements the broker's topic registry and per-subscriber
// delivery queues.
//
// A Registry owns every Topic. A Topic owns its subscribers, and each
// Subscriber owns a bounded FIFO Queue of delivery Records. A Record names a
// shared-memory buffer plus caller metadata and timestamp; payload bytes never
// pass through this package.
//
// # Fan-out
//
// Topic.Publish holds the topic lock for the whole fan-out: it counts the
// current subscribers, lets the caller retain that many buffer references in
// one step, then appends the record to every queue. A concurrent Subscribe
// therefore sees a publication in full or not at all. Publishing to a topic
// without subscribers enqueues nothing; retain still runs with zero and may
// reject the record.
//
// # Backpressure
//
// Queues are bounded by their subscriber's max size (0 means unbounded). When
// a queue is full at publish time the OverflowPolicy decides which record is
// dropped:
//
//   - DropOldest evicts the head and appends the new record (default)
//   - DropNewest keeps the queue as is and drops the new record
//
// Dropped records are returned to the caller, which must release the buffer
// reference it retained for them. Publishers never block on a slow subscriber.
//
// # Waiting
//
// Queue.Pull waits up to a timeout for a record: a negative timeout waits
// forever, zero returns ErrTimeout immediately on an empty queue. Registry.WaitFor
// blocks until a topic is registered, which replaces the client-side polling
// loops of older protocol versions.
package topic
