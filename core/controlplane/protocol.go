package controlplane

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/dmitrymomot/shmbroker/core/topic"
)

// Method names carried in Request.Method.
const (
	MethodCreateBuffer       = "CreateBuffer"
	MethodGetBuffer          = "GetBuffer"
	MethodReleaseBuffer      = "ReleaseBuffer"
	MethodRegisterTopic      = "RegisterTopic"
	MethodGetSubscriberCount = "GetSubscriberCount"
	MethodSubscribe          = "Subscribe"
	MethodPublish            = "Publish"
	MethodPull               = "Pull"
	MethodGenerateID         = "GenerateID"
	MethodListTopics         = "ListTopics"
)

// Request is one call frame. ID is chosen by the client and echoed in the response.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
}

// StatusResult is the result of calls that return nothing but a code.
type StatusResult struct {
	Result int32 `json:"result"`
}

// CreateBufferParams requests a new region of Size bytes.
type CreateBufferParams struct {
	Size int64 `json:"size"`
}

// CreateBufferResult carries the name of the created region.
type CreateBufferResult struct {
	Name   string `json:"name"`
	Result int32  `json:"result"`
}

// BufferParams names the buffer for GetBuffer and ReleaseBuffer.
type BufferParams struct {
	Name string `json:"name"`
}

// GetBufferResult reports the size of an existing buffer.
type GetBufferResult struct {
	Size   int64 `json:"size"`
	Result int32 `json:"result"`
}

// RegisterTopicParams names the topic to register.
type RegisterTopicParams struct {
	Name string `json:"name"`
}

// GetSubscriberCountParams names the topic to inspect.
type GetSubscriberCountParams struct {
	TopicName string `json:"topic_name"`
}

// GetSubscriberCountResult reports the current subscriber count.
type GetSubscriberCountResult struct {
	NumSubs int   `json:"num_subs"`
	Result  int32 `json:"result"`
}

// SubscribeParams identifies the subscriber by SubscriberName or, for clients
// that use generated ids, by ID.
type SubscribeParams struct {
	TopicName      string   `json:"topic_name"`
	SubscriberName string   `json:"subscriber_name,omitempty"`
	ID             uint64   `json:"id,omitempty"`
	MaxQueueSize   int      `json:"max_queue_size"`
	Dependencies   []string `json:"dependencies,omitempty"`

	// Wait blocks until the topic is registered. WaitTimeoutMS bounds the
	// wait; 0 selects the server default and a negative value waits forever.
	Wait          bool  `json:"wait,omitempty"`
	WaitTimeoutMS int64 `json:"wait_timeout_ms,omitempty"`
}

// PublishParams hands a buffer and its metadata to every subscriber of TopicName.
type PublishParams struct {
	TopicName  string `json:"topic_name"`
	BufferName string `json:"buffer_name"`
	Metadata   []byte `json:"metadata,omitempty"`
	Timestamp  uint64 `json:"timestamp"`
}

// PullParams.Timeout is in milliseconds. Negative waits forever, 0 never waits.
type PullParams struct {
	TopicName      string `json:"topic_name"`
	SubscriberName string `json:"subscriber_name,omitempty"`
	ID             uint64 `json:"id,omitempty"`
	Timeout        int64  `json:"timeout"`
}

// PullResult carries the dequeued record. The caller owns one reference on BufferName.
type PullResult struct {
	BufferName string `json:"buffer_name,omitempty"`
	Metadata   []byte `json:"metadata,omitempty"`
	Timestamp  uint64 `json:"timestamp"`
	Result     int32  `json:"result"`
}

// GenerateIDResult carries a fresh process-wide id.
type GenerateIDResult struct {
	ID     uint64 `json:"id"`
	Result int32  `json:"result"`
}

// ListTopicsResult lists registered topics in name order.
type ListTopicsResult struct {
	Topics []string `json:"topics"`
	Result int32    `json:"result"`
}

// subscriberID picks the caller-supplied name, falling back to the generated id.
func subscriberID(name string, id uint64) topic.SubscriberID {
	if name != "" {
		return topic.SubscriberID(name)
	}
	if id != 0 {
		return topic.SubscriberID(strconv.FormatUint(id, 10))
	}
	return ""
}

func dependencies(names []string) []topic.SubscriberID {
	if len(names) == 0 {
		return nil
	}
	ids := make([]topic.SubscriberID, len(names))
	for i, n := range names {
		ids[i] = topic.SubscriberID(n)
	}
	return ids
}

// maxMillis is the largest wire timeout representable as a time.Duration.
const maxMillis = int64(math.MaxInt64 / int64(time.Millisecond))

// millis converts a wire timeout, keeping negative values as "forever".
// Values past the Duration range saturate instead of wrapping negative.
func millis(ms int64) time.Duration {
	switch {
	case ms < 0:
		return -1
	case ms > maxMillis:
		return time.Duration(math.MaxInt64)
	default:
		return time.Duration(ms) * time.Millisecond
	}
}

func toMillis(d time.Duration) int64 {
	switch {
	case d < 0:
		return -1
	case d > 0 && d < time.Millisecond:
		return 1
	default:
		return d.Milliseconds()
	}
}
