package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("dev", "loud", "")
	require.Error(t, err)
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scheduler.log")

	logger, err := New("prod", "info", path)
	require.NoError(t, err)

	logger.Debug("slot pruned")
	_ = logger.Sync() // stdout sync fails on pipes

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "slot pruned")
	assert.Contains(t, string(data), `"env":"prod"`)
}
