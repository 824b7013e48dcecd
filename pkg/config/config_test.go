package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
context_window: 300000
storage:
  path: /var/lib/codegraph
llm:
  provider: ollama
  model: llama3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 300000, cfg.ContextWindow)
	assert.Equal(t, "/var/lib/codegraph", cfg.Storage.Path)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.True(t, cfg.Cache.Enabled) // inherited from Default()
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Storage.Path, cfg.Storage.Path)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("CODEGRAPH_STORAGE_PATH", "/overridden")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/overridden", cfg.Storage.Path)
}

func TestMaxResultBytesDerivesFromContextWindow(t *testing.T) {
	cfg := Config{ContextWindow: 1000}
	assert.Equal(t, 2000, cfg.MaxResultBytes())

	cfg = Config{}
	assert.Equal(t, 200*1024, cfg.MaxResultBytes())
}

func TestValidateRejectsEmptyStoragePath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = ""
	assert.Error(t, cfg.Validate())
}
