// ABOUTME: Tests for logger construction
// ABOUTME: Covers level parsing and file output
package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		lvl, err := ParseLevel(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, lvl)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "androidmic.log")

	logger, err := New("info", path, false)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("stream connected")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stream connected")
	assert.NotContains(t, string(data), "hidden")
}

func TestNewWithoutOutputsIsNop(t *testing.T) {
	logger, err := New("debug", "", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New("loud", "", true)
	assert.Error(t, err)
}
