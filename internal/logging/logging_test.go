package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"ServiceMeshDemo/internal/config"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn"}, "frontend")
	require.NoError(t, err)

	assert.False(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Desugar().Core().Enabled(zapcore.WarnLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "chatty"}, "frontend")
	assert.Error(t, err)
}

func TestDevelopmentLogger(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "debug", Development: true}, "frontend")
	require.NoError(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel))
}
