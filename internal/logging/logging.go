// Package logging builds zap loggers from config.LogConfig.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/llmgate/config"
)

// ParseLevel maps a config level string to a zap level. ok is false for
// unknown or empty input, in which case info is returned.
func ParseLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// New 根据日志配置构建 logger，失败时回退到 zap.NewProduction
func New(cfg config.LogConfig) *zap.Logger {
	level, _ := ParseLevel(cfg.Level)

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

// ForVendor derives the logger used by one vendor client. A vendor log_level
// raises the floor for that client only; it can never lower the parent's.
func ForVendor(base *zap.Logger, vendor, levelName string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	logger := base.With(zap.String("vendor", vendor))
	level, ok := ParseLevel(levelName)
	if !ok {
		return logger
	}
	if !logger.Core().Enabled(level - 1) {
		return logger
	}
	return logger.WithOptions(zap.IncreaseLevel(level))
}
