// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package loads a .env file from the working directory on first use, if
// one exists, and uses the caarlos0/env library for parsing environment
// variables into struct fields.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/shmbroker/core/config"
//
//	type BrokerConfig struct {
//		Addr          string `env:"SERVER_ADDR" envDefault:":50051"`
//		QueueSize     int    `env:"BROKER_DEFAULT_QUEUE_SIZE" envDefault:"2"`
//		OverflowMode  string `env:"BROKER_OVERFLOW_POLICY" envDefault:"drop-oldest"`
//	}
//
//	func main() {
//		var cfg BrokerConfig
//
//		// Load with error handling
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per process:
//
//	var cfg1 BrokerConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 BrokerConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Different types are cached independently. Use Reset in tests that change
// the environment between loads.
package config
