package broker

import (
	"github.com/dmitrymomot/shmbroker/core/buffer"
	"github.com/dmitrymomot/shmbroker/core/topic"
)

// Config holds broker settings.
// Designed for environment-based configuration with core/config.
type Config struct {
	// Directory holding shared-memory regions. Empty selects shm.DefaultDir.
	ShmDir string `env:"BROKER_SHM_DIR"`

	BufferPrefix      string `env:"BROKER_BUFFER_PREFIX" envDefault:"shmbroker"`
	MaxBufferSize     int64  `env:"BROKER_MAX_BUFFER_SIZE" envDefault:"0"`
	ReleasedCacheSize int    `env:"BROKER_RELEASED_CACHE_SIZE" envDefault:"1024"`

	DefaultQueueSize int    `env:"BROKER_DEFAULT_QUEUE_SIZE" envDefault:"2"`
	OverflowPolicy   string `env:"BROKER_OVERFLOW_POLICY" envDefault:"drop-oldest"`
	AutoCreateTopics bool   `env:"BROKER_AUTO_CREATE_TOPICS" envDefault:"false"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BufferPrefix:      buffer.DefaultPrefix,
		ReleasedCacheSize: buffer.DefaultReleasedCacheSize,
		DefaultQueueSize:  topic.DefaultQueueSize,
		OverflowPolicy:    topic.DropOldest.String(),
	}
}
