package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:5000", cfg.TCPAddr())
	assert.Equal(t, "localhost:8092", cfg.HTTPAddr())
	assert.Equal(t, "scenarios", cfg.DataDir)
	assert.Equal(t, 10, cfg.Recorder.BatchSize)
	assert.False(t, cfg.StopOnLastDisconnect)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
host: 0.0.0.0
tcp_port: 6000
stop_on_last_disconnect: true
recorder:
  batch_size: 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:6000", cfg.TCPAddr())
	assert.Equal(t, "0.0.0.0:8092", cfg.HTTPAddr(), "unset keys keep defaults")
	assert.True(t, cfg.StopOnLastDisconnect)
	assert.Equal(t, 25, cfg.Recorder.BatchSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tcp_port: 6000\n"), 0o644))

	t.Setenv("TCP_PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db/scn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.TCPPort)
	assert.Equal(t, "postgres://user:pass@db/scn", cfg.DatabaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: [broken\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
