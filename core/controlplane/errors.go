package controlplane

import "errors"

var (
	// ErrClientClosed is returned by calls on a closed client or after the
	// connection dropped.
	ErrClientClosed = errors.New("control-plane client closed")

	// ErrBadResponse is returned when a response frame cannot be decoded.
	ErrBadResponse = errors.New("malformed control-plane response")

	// ErrServiceNil is returned by NewHandler without a broker.
	ErrServiceNil = errors.New("broker service is nil")
)
