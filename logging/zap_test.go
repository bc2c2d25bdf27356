package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arloliu/sharder/types"
)

func TestZapLogger_ImplementsInterface(t *testing.T) {
	t.Helper()
	var _ types.Logger = (*ZapLogger)(nil)
}

// newBufferedZap builds a zap logger writing JSON lines into buf.
func newBufferedZap(buf *bytes.Buffer, level zapcore.Level) *zap.Logger {
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(buf), level)

	return zap.New(core)
}

func TestNewZap(t *testing.T) {
	logger := NewZap(zap.NewNop())

	require.NotNil(t, logger)
	require.NotNil(t, logger.sugar)
}

func TestNewZapSugared(t *testing.T) {
	logger := NewZapSugared(zap.NewNop().Sugar())

	require.NotNil(t, logger)
	require.NotNil(t, logger.sugar)
}

func TestZapLogger_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewZap(newBufferedZap(buf, zapcore.DebugLevel))

	logger.Debug("routing account", "shard", 3)
	logger.Info("expansion committed", "epoch", 2)
	logger.Warn("shard degraded", "shard", 7)
	logger.Error("expansion rolled back", "error", "timeout")

	output := buf.String()
	assert.Contains(t, output, `"msg":"routing account"`)
	assert.Contains(t, output, `"shard":3`)
	assert.Contains(t, output, `"level":"debug"`)
	assert.Contains(t, output, `"msg":"expansion committed"`)
	assert.Contains(t, output, `"epoch":2`)
	assert.Contains(t, output, `"level":"info"`)
	assert.Contains(t, output, `"msg":"shard degraded"`)
	assert.Contains(t, output, `"level":"warn"`)
	assert.Contains(t, output, `"msg":"expansion rolled back"`)
	assert.Contains(t, output, `"error":"timeout"`)
	assert.Contains(t, output, `"level":"error"`)
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewZap(newBufferedZap(buf, zapcore.WarnLevel))

	logger.Debug("debug message")
	logger.Info("info message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")

	logger.Warn("warn message")
	logger.Error("error message")

	output = buf.String()
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestZapLogger_MultipleKeyValues(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewZap(newBufferedZap(buf, zapcore.InfoLevel))

	logger.Info("expansion state changed",
		"old_state", "Idle",
		"new_state", "Migrating",
		"shard_count", 16)

	output := buf.String()
	assert.Contains(t, output, `"old_state":"Idle"`)
	assert.Contains(t, output, `"new_state":"Migrating"`)
	assert.Contains(t, output, `"shard_count":16`)
}
