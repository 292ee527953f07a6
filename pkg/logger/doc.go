// Package logger builds configured log/slog loggers with sane production
// defaults (JSON output, INFO level) and option functions for overrides.
//
//	log := logger.New(
//	    logger.WithService("sso"),
//	    logger.WithLevel(slog.LevelDebug),
//	)
//	logger.SetAsDefault(log)
package logger
