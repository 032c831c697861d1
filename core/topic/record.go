package topic

import (
	"fmt"
	"strings"
)

// SubscriberID identifies a subscriber within a topic. The control plane
// decides whether it is caller-chosen or generated.
type SubscriberID string

// Record is one delivery of a buffer to one subscriber.
type Record struct {
	BufferID  string
	Metadata  []byte
	Timestamp uint64
}

// OverflowPolicy selects what happens when a full queue receives a record.
type OverflowPolicy int

const (
	// DropOldest evicts the head of the queue to make room.
	DropOldest OverflowPolicy = iota

	// DropNewest rejects the incoming record.
	DropNewest
)

// String returns the configuration name of the policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy parses "drop-oldest" or "drop-newest".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop-oldest", "drop_oldest", "oldest":
		return DropOldest, nil
	case "drop-newest", "drop_newest", "newest", "reject":
		return DropNewest, nil
	default:
		return DropOldest, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}
