// Package logging holds the shared application logger. Before Init is
// called (tests, tooling) a development console logger is used.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var L *zap.SugaredLogger

func init() {
	base, _ := zap.NewDevelopment()
	L = base.Sugar()
}

// Init replaces the default logger with a production JSON logger. When
// path is non-empty, output goes to a size-rotated file instead of stderr.
func Init(level, path string) error {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if path != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // MiB
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		})
	} else {
		stderr, _, err := zap.Open("stderr")
		if err != nil {
			return err
		}
		sink = stderr
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		sink,
		zap.NewAtomicLevelAt(parseLevel(level)),
	)
	L = zap.New(core, zap.AddCaller()).Sugar()
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
