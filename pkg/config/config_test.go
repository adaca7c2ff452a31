package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(DefaultPath(t.TempDir()))
	require.NoError(t, err)
	require.Equal(t, DefaultFPS, cfg.FPSOrDefault())
	require.Equal(t, DefaultMaxBlockSize, cfg.MaxBlockSizeOrDefault())
	require.True(t, cfg.AutoFollowOrDefault())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := DefaultPath(dir)
	require.NoError(t, os.WriteFile(path, []byte(`
server: https://ci.example.com
scope: acme
fps: 30
max_block_size: 250
auto_follow: false
timeout: 5s
paths:
  stream: /feed/%s
`), 0o644))

	cfg, err := LoadOptional(path)
	require.NoError(t, err)
	require.Equal(t, "https://ci.example.com", cfg.Server)
	require.Equal(t, "acme", cfg.Scope)
	require.Equal(t, 30, cfg.FPSOrDefault())
	require.Equal(t, 250, cfg.MaxBlockSizeOrDefault())
	require.False(t, cfg.AutoFollowOrDefault())
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, "/feed/%s", cfg.Paths.Stream)
}

func TestLoadRejectsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: -1\n"), 0o644))
	_, err := LoadFromFile(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("fps: [\n"), 0o644))
	_, err = LoadFromFile(path)
	require.ErrorContains(t, err, "parse config yaml")
}
