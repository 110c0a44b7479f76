package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	Use(zap.New(core))
	t.Cleanup(func() { Use(prev) })
	return logs
}

func TestFromContextCarriesRequestID(t *testing.T) {
	logs := observe(t)

	FromContext(WithRequestID(context.Background(), "42")).Info("handled")
	FromContext(context.Background()).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "42", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestPackageHelpers(t *testing.T) {
	logs := observe(t)

	Warn("disk slow", zap.String("path", "/tmp"))
	Error("disk gone")

	require.Equal(t, 1, logs.FilterMessage("disk slow").Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.FilterMessage("disk gone").All()[0].Level)
}

func TestSetLevelIgnoresGarbage(t *testing.T) {
	SetLevel("warn")
	assert.Equal(t, zapcore.WarnLevel, globalLevel.Level())
	SetLevel("loud")
	assert.Equal(t, zapcore.WarnLevel, globalLevel.Level())
	SetLevel("info")
}
