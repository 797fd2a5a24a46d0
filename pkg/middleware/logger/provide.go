package logger

import (
	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module provides the system *zap.Logger and the access-log *Middleware,
// both writing under cfg.Log.Dir.
var Module = fx.Options(
	fx.Provide(ProvideLoggerMiddleware),
	fx.Provide(ProvideLogger),
)

func ProvideLoggerMiddleware(cfg config.Config) *Middleware {
	return NewMiddleware(newAccessLog(cfg.Log.Dir, "http-access.log"))
}

func ProvideLogger(cfg config.Config) *zap.Logger {
	lvl, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		lvl = zap.InfoLevel
	}
	return NewLog(cfg.Log.Dir, "system.log", lvl).With(zap.String("service", cfg.Service))
}
