package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngineConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseEngineConfig([]byte(`
[mesh]
max_meshes = 8

[texture]
default_path = "images/fallback.png"
`))
	require.NoError(t, err)
	assert.Equal(t, uint32(8), cfg.Mesh.MaxMeshes)
	assert.Equal(t, "images/fallback.png", cfg.Texture.DefaultPath)
	assert.Equal(t, uint32(256), cfg.Texture.MaxTextures)
	assert.Equal(t, uint32(1024), cfg.Entity.MaxEntities)
	assert.Equal(t, "config/model_pipeline.toml", cfg.Pipeline.ConfigPath)
	assert.Equal(t, "Anima3D", cfg.Application.Name)
}

func TestParseEngineConfigRejectsGarbage(t *testing.T) {
	cfg, err := ParseEngineConfig([]byte("[mesh\nmax_meshes = "))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadEngineConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[application]
name = "demo"
log_level = "warn"
`), 0o644))

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Application.Name)
	assert.Equal(t, WarnLevel, ParseLogLevel(cfg.Application.LogLevel))

	_, err = LoadEngineConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, ErrorLevel, ParseLogLevel(" error "))
	assert.Equal(t, InfoLevel, ParseLogLevel("verbose"))
}
