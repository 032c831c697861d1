package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/shmbroker/core/broker"
	"github.com/dmitrymomot/shmbroker/core/logger"
	"github.com/dmitrymomot/shmbroker/core/shm"
	"github.com/dmitrymomot/shmbroker/core/topic"
)

// Client talks to a broker over one websocket. Safe for concurrent use;
// calls are multiplexed over the connection.
type Client struct {
	conn   *websocket.Conn
	nextID atomic.Uint64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan json.RawMessage
	err     error
	done    chan struct{}

	shmDir string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithShmDir sets the directory MapBuffer resolves buffer names in.
func WithShmDir(dir string) ClientOption {
	return func(c *Client) {
		if dir != "" {
			c.shmDir = dir
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// Dial connects to the control plane at url, e.g. "ws://127.0.0.1:50051/rpc".
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		pending: make(map[uint64]chan json.RawMessage),
		done:    make(chan struct{}),
		shmDir:  shm.DefaultDir(),
		dialer:  websocket.DefaultDialer,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	c.conn = conn

	go c.readLoop()

	return c, nil
}

// Close closes the connection. Calls in flight fail with ErrClientClosed.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.fail(ErrClientClosed)
	return err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// CreateBuffer allocates a buffer and returns its name.
func (c *Client) CreateBuffer(ctx context.Context, size int64) (string, error) {
	var res CreateBufferResult
	if err := c.call(ctx, MethodCreateBuffer, CreateBufferParams{Size: size}, &res); err != nil {
		return "", err
	}
	return res.Name, broker.ErrorFromCode(res.Result)
}

// GetBuffer returns the size of a live buffer.
func (c *Client) GetBuffer(ctx context.Context, name string) (int64, error) {
	var res GetBufferResult
	if err := c.call(ctx, MethodGetBuffer, BufferParams{Name: name}, &res); err != nil {
		return 0, err
	}
	return res.Size, broker.ErrorFromCode(res.Result)
}

// ReleaseBuffer drops one reference on a buffer.
func (c *Client) ReleaseBuffer(ctx context.Context, name string) error {
	return c.status(ctx, MethodReleaseBuffer, BufferParams{Name: name})
}

// RegisterTopic creates a topic; registering an existing one succeeds.
func (c *Client) RegisterTopic(ctx context.Context, name string) error {
	return c.status(ctx, MethodRegisterTopic, RegisterTopicParams{Name: name})
}

// GetSubscriberCount returns the number of subscribers on a topic.
func (c *Client) GetSubscriberCount(ctx context.Context, topicName string) (int, error) {
	var res GetSubscriberCountResult
	if err := c.call(ctx, MethodGetSubscriberCount, GetSubscriberCountParams{TopicName: topicName}, &res); err != nil {
		return 0, err
	}
	return res.NumSubs, broker.ErrorFromCode(res.Result)
}

// Subscribe attaches a subscriber. A broker.ErrPending result means the topic
// was not registered within the wait and the call may be retried.
func (c *Client) Subscribe(ctx context.Context, p SubscribeParams) error {
	return c.status(ctx, MethodSubscribe, p)
}

// Publish fans a buffer out to the topic's subscribers.
func (c *Client) Publish(ctx context.Context, p PublishParams) error {
	return c.status(ctx, MethodPublish, p)
}

// Pull waits up to timeout for the next record. A negative timeout waits
// until a record arrives or ctx ends.
func (c *Client) Pull(ctx context.Context, topicName, subscriber string, timeout time.Duration) (topic.Record, error) {
	var res PullResult
	err := c.call(ctx, MethodPull, PullParams{
		TopicName:      topicName,
		SubscriberName: subscriber,
		Timeout:        toMillis(timeout),
	}, &res)
	if err != nil {
		return topic.Record{}, err
	}
	if err := broker.ErrorFromCode(res.Result); err != nil {
		return topic.Record{}, err
	}
	return topic.Record{BufferID: res.BufferName, Metadata: res.Metadata, Timestamp: res.Timestamp}, nil
}

// GenerateID returns a broker-unique subscriber id.
func (c *Client) GenerateID(ctx context.Context) (uint64, error) {
	var res GenerateIDResult
	if err := c.call(ctx, MethodGenerateID, nil, &res); err != nil {
		return 0, err
	}
	return res.ID, broker.ErrorFromCode(res.Result)
}

// ListTopics returns the registered topic names.
func (c *Client) ListTopics(ctx context.Context) ([]string, error) {
	var res ListTopicsResult
	if err := c.call(ctx, MethodListTopics, nil, &res); err != nil {
		return nil, err
	}
	return res.Topics, broker.ErrorFromCode(res.Result)
}

// MapBuffer maps a live buffer into this process. The mapping does not hold a
// broker reference; release the buffer only after unmapping.
func (c *Client) MapBuffer(ctx context.Context, name string) (*shm.Mapping, error) {
	size, err := c.GetBuffer(ctx, name)
	if err != nil {
		return nil, err
	}
	return shm.Map(c.shmDir, name, size)
}

// UnmapBuffer unmaps m and releases the buffer reference the caller held.
func (c *Client) UnmapBuffer(ctx context.Context, m *shm.Mapping) error {
	return errors.Join(m.Unmap(), c.ReleaseBuffer(ctx, m.Name()))
}

func (c *Client) status(ctx context.Context, method string, params any) error {
	var res StatusResult
	if err := c.call(ctx, method, params, &res); err != nil {
		return err
	}
	return broker.ErrorFromCode(res.Result)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	req := Request{ID: c.nextID.Add(1), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode %s params: %w", method, err)
		}
		req.Params = raw
	}

	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return errors.Join(ErrClientClosed, err)
	}

	select {
	case raw := <-ch:
		if err := json.Unmarshal(raw, result); err != nil {
			return errors.Join(ErrBadResponse, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", broker.ErrCanceled, ctx.Err())
	case <-c.done:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		return err
	}
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(errors.Join(ErrClientClosed, err))
			return
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("dropping malformed response", logger.Error(err))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("response for abandoned request", logger.Count("id", int(resp.ID)))
			continue
		}
		ch <- resp.Result
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
}
