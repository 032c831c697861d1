package controlplane

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultSubscribeWait bounds Subscribe with wait set when the caller
	// does not pass a timeout.
	DefaultSubscribeWait = 5 * time.Second

	// DefaultReadLimit caps the size of a request frame.
	DefaultReadLimit int64 = 1 << 20
)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for connection and request events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithGatherer serves metrics from g at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// WithSubscribeWait sets the wait used when Subscribe asks to wait without a timeout.
func WithSubscribeWait(d time.Duration) Option {
	return func(h *Handler) {
		if d != 0 {
			h.subscribeWait = d
		}
	}
}

// WithReadLimit caps the size of a request frame in bytes.
func WithReadLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithOriginCheck sets the websocket origin check. By default any origin is
// accepted; clients are local processes.
func WithOriginCheck(fn func(r *http.Request) bool) Option {
	return func(h *Handler) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// WithBufferSizes sets the websocket read and write buffer sizes.
func WithBufferSizes(read, write int) Option {
	return func(h *Handler) {
		if read > 0 {
			h.upgrader.ReadBufferSize = read
		}
		if write > 0 {
			h.upgrader.WriteBufferSize = write
		}
	}
}
