package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"storesync/internal/config"
)

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	l, err := New(config.LogConfig{Level: "loud", Encoding: "console"}, "dev")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewHonoursLevelAndEncoding(t *testing.T) {
	l, err := New(config.LogConfig{Level: "DEBUG", Encoding: "json", Sampling: true}, "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New(config.LogConfig{Level: "warn", Encoding: "xml"}, "prod")
	require.NoError(t, err)
}
