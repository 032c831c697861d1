package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a group of attributes under a single key.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// ============================================================================
// Error Handling
// ============================================================================

// Errors groups multiple non-nil errors under the key "errors".
// Uses index-based keys to preserve error order. Returns empty Attr for all nil errors.
func Errors(errs ...error) slog.Attr {
	count := 0
	for _, err := range errs {
		if err != nil {
			count++
		}
	}
	if count == 0 {
		return slog.Attr{}
	}

	as := make([]slog.Attr, 0, count)
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// Returns empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ============================================================================
// Timing
// ============================================================================

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Timeout creates an attribute for a wait bound. Negative values mean no bound.
func Timeout(d time.Duration) slog.Attr {
	return slog.Duration("timeout", d)
}

// ============================================================================
// Broker Entities
// ============================================================================

// Topic creates an attribute for topic names.
func Topic(name string) slog.Attr {
	return slog.String("topic", name)
}

// Subscriber creates an attribute for subscriber identities.
func Subscriber(id string) slog.Attr {
	return slog.String("subscriber", id)
}

// Buffer creates an attribute for buffer ids.
func Buffer(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("buffer", id)
}

// Size creates an attribute for sizes in bytes.
func Size(n int64) slog.Attr {
	return slog.Int64("size", n)
}

// Refs creates an attribute for reference counts.
func Refs(n int) slog.Attr {
	return slog.Int("refs", n)
}

// Session creates an attribute for control-plane session ids.
func Session(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session", id)
}

// ============================================================================
// Generic Metadata
// ============================================================================

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Method creates an attribute for control-plane method names.
func Method(name string) slog.Attr {
	return slog.String("method", name)
}

// Result creates an attribute for operation results.
func Result(result string) slog.Attr {
	return slog.String("result", result)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
