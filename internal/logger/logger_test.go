package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" ERROR ": zapcore.ErrorLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestNewWithWriter_RespectsLevel checks that entries below the level are dropped.
func TestNewWithWriter_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), NewWithWriter(&buf, zapcore.WarnLevel))

	Info(ctx, "hidden")
	WarnKV(ctx, "visible", "count", 1)

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "visible")
	require.Contains(t, buf.String(), "count")
}

// TestWithLevel raises the floor of an existing logger without touching the original.
func TestWithLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	base := NewWithWriter(&buf, zapcore.DebugLevel)
	quiet := base.WithOptions(WithLevel(zapcore.WarnLevel))

	quiet.Info("quiet info")
	quiet.Warn("quiet warn")
	base.Info("base info")

	require.NotContains(t, buf.String(), "quiet info")
	require.Contains(t, buf.String(), "quiet warn")
	require.Contains(t, buf.String(), "base info")
}
