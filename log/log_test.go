package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func captured(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLogLevel(t *testing.T) {
	buf := captured(t)

	hooked := 0
	hookFn := func(entry zapcore.Entry) error {
		hooked++
		require.Equal(t, zapcore.InfoLevel, entry.Level, "got wrong log level")
		return nil
	}
	enc, err := NewEncoder(ConsoleEncoder)
	require.NoError(t, err)
	logger := NewWithLevel("logtest", zap.NewAtomicLevelAt(zapcore.InfoLevel), enc, hookFn)

	logger.Debug("test001")
	require.Zero(t, buf.Len())

	logger.Info("test002", zap.String("did", "did:peer:1z"))
	require.Contains(t, buf.String(), "INFO")
	require.Contains(t, buf.String(), "logtest")
	require.Contains(t, buf.String(), "test002")
	require.Contains(t, buf.String(), `"did": "did:peer:1z"`)
	require.Equal(t, 1, hooked)
}

func TestNewParsesNames(t *testing.T) {
	buf := captured(t)

	logger, err := New("cli", "WARN", JSONEncoder)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
	require.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = New("cli", "loud", ConsoleEncoder)
	require.Error(t, err)
	_, err = New("cli", "info", "xml")
	require.Error(t, err)
}

func TestLevelsNamed(t *testing.T) {
	buf := captured(t)

	root, err := New("", "debug", ConsoleEncoder)
	require.NoError(t, err)
	levels := NewLevels(root, zapcore.InfoLevel, map[string]string{
		"repo": "error",
		"sim":  "bogus",
	})

	levels.Named("repo").Warn("repo warning")
	require.NotContains(t, buf.String(), "repo warning")

	levels.Named("agent").Info("agent info")
	require.Contains(t, buf.String(), "agent info")

	buf.Reset()
	levels.Named("sim").Info("sim info")
	require.Contains(t, buf.String(), "invalid log level")
	require.Contains(t, buf.String(), "sim info")
}
