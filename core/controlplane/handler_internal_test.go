package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/shmbroker/core/broker"
	"github.com/dmitrymomot/shmbroker/core/logger"
	"github.com/dmitrymomot/shmbroker/core/shm"
	"github.com/dmitrymomot/shmbroker/core/topic"
)

// brokenSession returns a session whose socket is already closed, so every
// write fails.
func brokenSession(t *testing.T) *session {
	t.Helper()

	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn := <-conns
	require.NoError(t, conn.Close())

	s := newSession(context.Background(), conn, logger.Discard())
	t.Cleanup(s.cancel)
	return s
}

func TestHandler_ServeUndeliveredPull(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	alloc := shm.NewMemoryAllocator()
	svc, err := broker.NewFromConfig(broker.DefaultConfig(), alloc, broker.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	h, err := NewHandler(svc, WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, err)

	name, err := svc.CreateBuffer(ctx, 8)
	require.NoError(t, err)
	require.NoError(t, svc.RegisterTopic(ctx, "t"))
	require.NoError(t, svc.Subscribe(ctx, topic.SubscribeRequest{Topic: "t", Subscriber: "s1"}))
	_, err = svc.Publish(ctx, "t", topic.Record{BufferID: name})
	require.NoError(t, err)
	require.NoError(t, svc.ReleaseBuffer(ctx, name))
	require.True(t, alloc.Live(name))

	params, err := json.Marshal(PullParams{TopicName: "t", SubscriberName: "s1", Timeout: 0})
	require.NoError(t, err)

	h.serve(brokenSession(t), Request{ID: 1, Method: MethodPull, Params: params})

	assert.False(t, alloc.Live(name))
	assert.Equal(t, int64(1), svc.Stats().Pulled)
	assert.Zero(t, alloc.Stats().DoubleFree)
}

func TestHandler_ServeUndeliveredStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	alloc := shm.NewMemoryAllocator()
	svc, err := broker.NewFromConfig(broker.DefaultConfig(), alloc, broker.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	h, err := NewHandler(svc, WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, err)

	name, err := svc.CreateBuffer(ctx, 8)
	require.NoError(t, err)

	params, err := json.Marshal(BufferParams{Name: name})
	require.NoError(t, err)

	h.serve(brokenSession(t), Request{ID: 1, Method: MethodGetBuffer, Params: params})

	assert.True(t, alloc.Live(name))
}
