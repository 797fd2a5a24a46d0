package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func ensureLogDir(dir string) string {
	if dir == "" {
		dir = "log"
	}
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// NewLog tees JSON output to stdout and to a rotating file under dir.
func NewLog(dir, n string, level zapcore.Level) *zap.Logger {
	return newLog(dir, n, level, "msg")
}

// newAccessLog omits the message key; every access entry is fields only.
func newAccessLog(dir, n string) *zap.Logger {
	return newLog(dir, n, zap.InfoLevel, zapcore.OmitKey)
}

func newLog(dir, n string, level zapcore.Level, messageKey string) *zap.Logger {
	dir = ensureLogDir(dir)

	cfg := zap.NewProductionEncoderConfig()
	cfg.MessageKey = messageKey

	console := zapcore.Lock(os.Stdout)

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, n),
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, level),
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), console, level),
	)
	return zap.New(core)
}
