package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromEnv(t *testing.T) {
	cases := []struct {
		env, level string
		want       zapcore.Level
	}{
		{"", "", zap.InfoLevel},
		{"development", "", zap.DebugLevel},
		{"staging", "", zap.InfoLevel},
		{"development", "WARN", zap.WarnLevel},
		{"", "error", zap.ErrorLevel},
		{"dev", "bogus", zap.InfoLevel},
	}
	for _, tc := range cases {
		t.Setenv("ENV", tc.env)
		t.Setenv("LOG_LEVEL", tc.level)
		assert.Equal(t, tc.want, LevelFromEnv(), "ENV=%q LOG_LEVEL=%q", tc.env, tc.level)
	}
}

func TestSamplingRate(t *testing.T) {
	t.Setenv("ENV", "dev")
	assert.Equal(t, 1.0, GetSamplingRate())
	t.Setenv("ENV", "")
	assert.Equal(t, 0.1, GetSamplingRate())

	assert.True(t, ShouldSample(1))
	assert.False(t, ShouldSample(0))
}

func TestInitLoggerWithLevelNamesService(t *testing.T) {
	logger, err := InitLoggerWithLevel(zap.WarnLevel, "slotengine-test")
	assert.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
	assert.Same(t, logger, zap.L())
}
