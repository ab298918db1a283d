package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestDefaultLoggersAreUsable(t *testing.T) {
	require.NotNil(t, Log)
	require.NotNil(t, Sugar)
	Sugar.Infof("logging before Init must not panic: %d", 1)
}

func TestInitLevels(t *testing.T) {
	require.NoError(t, Init("debug"))
	assert.True(t, Log.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init("WARN"))
	assert.False(t, Log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Log.Core().Enabled(zapcore.WarnLevel))

	require.NoError(t, Init(""))
	assert.True(t, Log.Core().Enabled(zapcore.InfoLevel))
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Init("chatty"))
}

func TestInitToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitTo("info", &buf))
	t.Cleanup(func() { _ = Init("info") })

	Log.Info("hello", zap.String("k", "v"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "v", entry["k"])
	assert.Contains(t, entry, "timestamp")
}
