package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLogger(t *testing.T) {
	// The log directory does not exist yet; NewFileLogger must create it.
	path := filepath.Join(t.TempDir(), "logs", "web.log")
	logger, closeFn, err := NewFileLogger(path, "web", slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("listening", "port", "8080")
	require.NoError(t, closeFn())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `"service":"web"`)
	assert.Contains(t, string(contents), `"msg":"listening"`)
}

func TestNewFileLogger_FiltersBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mqtt.log")
	logger, closeFn, err := NewFileLogger(path, "mqtt", slog.LevelWarn)
	require.NoError(t, err)

	logger.Info("suppressed")
	logger.Warn("reconnecting")
	require.NoError(t, closeFn())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(contents), "suppressed")
	assert.Contains(t, string(contents), "reconnecting")
}
