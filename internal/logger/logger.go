// README: Structured logging behind a small interface so modules never touch zap directly.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ILogger interface {
	Info(msg string, fields ...Field)
	Warning(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type logger struct {
	zap *zap.Logger
}

func (l logger) Info(msg string, fields ...Field)    { l.zap.Info(msg, fields...) }
func (l logger) Warning(msg string, fields ...Field) { l.zap.Warn(msg, fields...) }
func (l logger) Error(msg string, fields ...Field)   { l.zap.Error(msg, fields...) }

func New(namespace, level string) ILogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.InitialFields = map[string]interface{}{"namespace": namespace}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger{zap: l}
}

// Nop returns a logger that discards everything; used in tests.
func Nop() ILogger {
	return logger{zap: zap.NewNop()}
}
