package buffer

import "log/slog"

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger for allocation and release events.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithPrefix sets the leading part of generated buffer names.
func WithPrefix(prefix string) Option {
	return func(t *Table) {
		if prefix != "" {
			t.prefix = prefix
		}
	}
}

// WithInstanceID overrides the random per-table instance component of buffer names.
func WithInstanceID(id string) Option {
	return func(t *Table) {
		if id != "" {
			t.instance = id
		}
	}
}

// WithMaxSize caps the size of a single buffer. Zero means unlimited.
func WithMaxSize(size int64) Option {
	return func(t *Table) {
		if size >= 0 {
			t.maxSize = size
		}
	}
}

// WithReleasedCacheSize sets how many freed ids are remembered to tell a double
// release apart from a release of an id that never existed.
func WithReleasedCacheSize(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.releasedSize = n
		}
	}
}
