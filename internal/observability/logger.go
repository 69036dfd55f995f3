package observability

import (
	"math/rand"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// envLevels is the default level per ENV when LOG_LEVEL is unset.
var envLevels = map[string]zapcore.Level{
	"development": zap.DebugLevel,
	"dev":         zap.DebugLevel,
	"staging":     zap.InfoLevel,
	"test":        zap.InfoLevel,
}

// envSampling is the ShouldSample rate for high-volume slot logs per ENV.
var envSampling = map[string]float64{
	"development": 1.0,
	"dev":         1.0,
	"staging":     0.5,
	"test":        0.5,
}

// InitLogger builds the daemon logger for the default service name.
func InitLogger() (*zap.Logger, error) {
	return InitLoggerWithService("slotengine")
}

// InitLoggerWithService builds a production logger named serviceName at the
// level taken from LOG_LEVEL or ENV, and installs it globally.
func InitLoggerWithService(serviceName string) (*zap.Logger, error) {
	return InitLoggerWithLevel(LevelFromEnv(), serviceName)
}

// InitLoggerWithLevel builds a logger writing JSON to stdout.
func InitLoggerWithLevel(level zapcore.Level, serviceName string) (*zap.Logger, error) {
	return build(productionConfig(level, "stdout"), serviceName)
}

// InitStderrLogger builds a logger for processes whose stdout carries a
// protocol, such as the MCP stdio server.
func InitStderrLogger(serviceName string) (*zap.Logger, error) {
	return build(productionConfig(LevelFromEnv(), "stderr"), serviceName)
}

func productionConfig(level zapcore.Level, output string) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{"stderr"}

	// field names match the Promtail pipeline
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	return cfg
}

func build(cfg zap.Config, serviceName string) (*zap.Logger, error) {
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	logger = logger.Named(serviceName).With(zap.String("service", serviceName))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// LevelFromEnv returns LOG_LEVEL if it parses, else the ENV default, else info.
func LevelFromEnv() zapcore.Level {
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if lvl, err := zapcore.ParseLevel(strings.ToLower(raw)); err == nil {
			return lvl
		}
		return zap.InfoLevel
	}
	if lvl, ok := envLevels[strings.ToLower(os.Getenv("ENV"))]; ok {
		return lvl
	}
	return zap.InfoLevel
}

// ShouldSample returns true if the log should be sampled at the given rate
// (0.0 to 1.0). High-volume events such as visibility changes and engagement
// reports go through this so production logs stay readable.
func ShouldSample(rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0.0 {
		return false
	}
	return rand.Float64() < rate
}

// GetSamplingRate returns the sampling rate for the current ENV. Production
// keeps one in ten.
func GetSamplingRate() float64 {
	if rate, ok := envSampling[strings.ToLower(os.Getenv("ENV"))]; ok {
		return rate
	}
	return 0.1
}
