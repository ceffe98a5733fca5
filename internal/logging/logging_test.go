package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := New("debug", path)
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewRejectsLevel(t *testing.T) {
	_, err := New("loud", "")
	assert.Error(t, err)
}
