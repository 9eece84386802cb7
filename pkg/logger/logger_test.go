package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"trafficwaker/pkg/config"
)

func TestInfoCtx_PrefixesTraceID(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Replace(prev) })

	core, logs := observer.New(zap.DebugLevel)
	Replace(zap.New(core))

	InfoCtx(WithTraceID(context.Background(), "req-42"), "woke %d workloads", 3)
	InfoCtx(context.Background(), "idle")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-42\twoke 3 workloads", entries[0].Message)
	assert.Equal(t, "0\tidle", entries[1].Message)
}

func TestTraceID_Default(t *testing.T) {
	assert.Equal(t, "0", TraceID(context.Background()))
	assert.Equal(t, "0", TraceID(WithTraceID(context.Background(), "")))
}

func TestInit(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Replace(prev) })

	t.Run("rejects unknown level", func(t *testing.T) {
		err := Init(config.LoggerConfig{Level: "verbose"})
		assert.Error(t, err)
	})

	t.Run("writes json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "waker.log")
		err := Init(config.LoggerConfig{Level: "debug", Output: "file", Format: "json", File: config.LoggerFileConfig{Path: path}})
		require.NoError(t, err)
		Info("started", zap.String("namespace", "shop"))
		assert.FileExists(t, path)
	})
}
