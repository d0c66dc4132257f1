package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roofline/pkg/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("chatty"), "unknown levels default to info")
}

func TestInitWithFileTee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "roofline.log")
	cleanup, err := Init(&config.LogConfig{Level: "info", File: path, Format: "text"})
	require.NoError(t, err)
	defer cleanup()

	slog.Info("pipeline started", "run_id", "test-123")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pipeline started")
	assert.Contains(t, string(data), "run_id=test-123")
}

func TestInitRotatesPreviousLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roofline.log")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o644))

	cleanup, err := Init(&config.LogConfig{Level: "info", File: path})
	require.NoError(t, err)
	defer cleanup()

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(old))
}
