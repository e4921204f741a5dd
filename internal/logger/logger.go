package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is a no-op until Init is called, so library code can log unconditionally.
var Log = zap.NewNop()

func Init(debug bool, file string) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	if file != "" {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    20,
			MaxBackups: 3,
			MaxAge:     28,
		})

		Log = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), writer, level))
		return
	}

	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	l, err := cfg.Build()
	if err != nil {
		return
	}
	Log = l
}

func Sync() {
	_ = Log.Sync()
}
