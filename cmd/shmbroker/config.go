package main

import (
	"github.com/dmitrymomot/shmbroker/core/broker"
	"github.com/dmitrymomot/shmbroker/core/server"
)

type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"shmbroker"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"` // overrides the environment's default level when set

	Broker broker.Config
	Server server.Config
}
