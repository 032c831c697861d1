package server

import "errors"

var (
	// ErrMissingAddress is returned when server address is not provided.
	ErrMissingAddress = errors.New("server address is required")

	// ErrServerAlreadyRunning is returned by Start on a running server.
	ErrServerAlreadyRunning = errors.New("server is already running")

	// ErrListen is returned when the listening socket cannot be opened.
	ErrListen = errors.New("failed to listen")

	// ErrShutdown is returned when graceful shutdown does not complete in time.
	ErrShutdown = errors.New("server shutdown error")
)
