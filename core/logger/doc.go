// Package logger provides structured logging helpers built on log/slog.
//
// New builds a *slog.Logger from options. Environment presets cover the two
// ways the broker runs:
//
//	// Development: text format, debug level, stderr
//	log := logger.New(logger.WithDevelopment("shmbroker"))
//
//	// Production: JSON format, info level, stderr
//	log := logger.New(logger.WithProduction("shmbroker"))
//
//	// Explicit configuration, e.g. from a LOG_LEVEL setting
//	log := logger.New(
//		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
//		logger.WithJSONFormatter(),
//		logger.WithAttr(slog.String("instance", id)),
//	)
//
// # Attribute Helpers
//
// Attribute helpers return an empty slog.Attr for zero inputs where that makes
// sense, so calls like log.Info("msg", logger.Error(err)) need no nil checks.
// Broker-specific helpers keep attribute keys consistent across packages:
//
//	log.Debug("published",
//		logger.Topic("frames"),
//		logger.Buffer(id),
//		logger.Count("subscribers", n),
//	)
//
//	log.Warn("queue overflow",
//		logger.Topic("frames"),
//		logger.Subscriber("detector"),
//		logger.Result("dropped"),
//	)
package logger
