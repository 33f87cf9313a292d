package candles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSVParsesRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candles.csv")
	content := "2026-01-01T00:00:00Z,100,101,99,100.5\n2026-01-01T00:00:01Z,100.5,102,100,101\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Open.Equal(got[0].Open))
	assert.Equal(t, "101", got[1].Close.String())
}

func TestLoadCSVRejectsBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte("not-a-time,1,1,1,1\n"), 0o644))

	_, err := LoadCSV(path)
	assert.Error(t, err)
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV("/nonexistent/path.csv")
	assert.Error(t, err)
}
