package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWithoutFileSink(t *testing.T) {
	logger, err := New("", false)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewMirrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")

	logger, err := New(path, true)
	require.NoError(t, err)
	logger.Debug("hello from test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from test")
}
