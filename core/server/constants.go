package server

import "time"

const (
	// DefaultAddr is the control-plane port clients expect.
	DefaultAddr = ":50051"

	// DefaultReadTimeout bounds the websocket handshake request.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is disabled: control-plane connections stay open
	// for the life of a client and Pull may block indefinitely.
	DefaultWriteTimeout time.Duration = 0

	// DefaultIdleTimeout is the default timeout for idle connections.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes is the default maximum size of request headers.
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB
)
