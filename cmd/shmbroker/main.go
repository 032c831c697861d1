package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/shmbroker/core/broker"
	"github.com/dmitrymomot/shmbroker/core/config"
	"github.com/dmitrymomot/shmbroker/core/controlplane"
	"github.com/dmitrymomot/shmbroker/core/logger"
	"github.com/dmitrymomot/shmbroker/core/server"
	"github.com/dmitrymomot/shmbroker/core/shm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg) // panic on error

	log := newLogger(cfg)

	shmDir := cfg.Broker.ShmDir
	if shmDir == "" {
		shmDir = shm.DefaultDir()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := broker.NewFromConfig(cfg.Broker,
		shm.NewPosixAllocator(shm.WithDir(shmDir)),
		broker.WithLogger(log.With(logger.Component("broker"))),
		broker.WithRegisterer(reg),
	)
	if err != nil {
		log.Error("Failed to create broker", logger.Component("broker"), logger.Error(err))
		os.Exit(1)
	}

	h, err := controlplane.NewHandler(svc,
		controlplane.WithLogger(log.With(logger.Component("controlplane"))),
		controlplane.WithGatherer(reg),
	)
	if err != nil {
		log.Error("Failed to create control plane", logger.Component("controlplane"), logger.Error(err))
		closeBroker(log, svc)
		os.Exit(1)
	}

	s, err := server.NewFromConfig(cfg.Server,
		server.WithLogger(log.With(logger.Component("server"))),
		server.WithShutdownHook(h.CloseConnections),
	)
	if err != nil {
		log.Error("Failed to create server", logger.Component("server"), logger.Error(err))
		closeBroker(log, svc)
		os.Exit(1)
	}

	log.Info("Broker ready",
		"shm_dir", shmDir,
		"overflow_policy", cfg.Broker.OverflowPolicy,
		"auto_create_topics", cfg.Broker.AutoCreateTopics,
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(s.Run(ctx, h))

	runErr := eg.Wait()

	// frees every region
	closeBroker(log, svc)

	if runErr != nil {
		log.Error("Failed to run server", logger.Component("server"), logger.Error(runErr))
		os.Exit(1)
	}

	log.Info("Broker stopped")
}

func newLogger(cfg Config) *slog.Logger {
	opts := []logger.Option{logger.WithDevelopment(cfg.AppName)}
	if cfg.AppEnv == "production" {
		opts = []logger.Option{logger.WithProduction(cfg.AppName)}
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}

func closeBroker(log *slog.Logger, svc *broker.Service) {
	if err := svc.Close(); err != nil {
		log.Error("Failed to release buffers", logger.Component("broker"), logger.Error(err))
	}
}
