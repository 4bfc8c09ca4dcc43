package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "stockledger-test",
	}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestLoggerProvider_BridgeDisabledReturnsBase(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zap.NewNop())
	require.NoError(t, err)

	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}
	logger := zap.New(core)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("low stock", zap.String("product_id", "p-1"))
	logger.Error("sweep failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "low stock", entries[0].Message)
	assert.Equal(t, "p-1", entries[0].ContextMap()["product_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
}

func TestLevelFilterCore_WithKeepsLevel(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := (&levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}).With([]zapcore.Field{zap.String("component", "outbox")})
	logger := zap.New(core)

	logger.Info("dropped")
	logger.Warn("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "outbox", entries[0].ContextMap()["component"])
}
