package server_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/shmbroker/core/server"
)

func waitForServer(t *testing.T, srv *server.Server) string {
	t.Helper()

	var addr string
	require.Eventually(t, func() bool {
		addr = srv.Addr()
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return addr
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	var hooked atomic.Bool
	srv := server.New("127.0.0.1:0",
		server.WithShutdownTimeout(time.Second),
		server.WithShutdownHook(func() { hooked.Store(true) }),
	)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})

	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(srv.Run(egCtx, handler))

	addr := waitForServer(t, srv)

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))

	cancel()
	require.NoError(t, eg.Wait())
	assert.Eventually(t, hooked.Load, time.Second, 10*time.Millisecond)
}

func TestServer_Start(t *testing.T) {
	t.Parallel()

	t.Run("rejects a second start", func(t *testing.T) {
		t.Parallel()

		srv := server.New("127.0.0.1:0")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- srv.Start(ctx, http.NotFoundHandler()) }()
		waitForServer(t, srv)

		err := srv.Start(ctx, http.NotFoundHandler())
		assert.ErrorIs(t, err, server.ErrServerAlreadyRunning)

		require.NoError(t, srv.Stop())
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("reports listen failures", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		srv := server.New(ln.Addr().String())
		err = srv.Start(context.Background(), http.NotFoundHandler())
		assert.ErrorIs(t, err, server.ErrListen)
	})

	t.Run("stop on idle server is a no-op", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, server.New("127.0.0.1:0").Stop())
	})
}
