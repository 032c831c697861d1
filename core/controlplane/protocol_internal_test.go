package controlplane

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMillis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ms   int64
		want time.Duration
	}{
		{"negative waits forever", -5, -1},
		{"zero never waits", 0, 0},
		{"regular value", 250, 250 * time.Millisecond},
		{"largest representable value", maxMillis, time.Duration(maxMillis) * time.Millisecond},
		{"past the duration range saturates", maxMillis + 1, time.Duration(math.MaxInt64)},
		{"max int64 saturates", math.MaxInt64, time.Duration(math.MaxInt64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := millis(tt.ms)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, time.Duration(-1))
		})
	}
}
