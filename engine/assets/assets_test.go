package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleObj = "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

func newTestManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "models"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shaders"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "models", "tri.obj"), []byte(triangleObj), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shaders", "model.vert.spv"), []byte{3, 2, 35, 7}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shaders", "model.frag.spv"), []byte{3, 2, 35, 7, 0, 0, 1, 0}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "config", "model_pipeline.toml"), []byte(`
name = "model"
vertex_shader = "shaders/model.vert.spv"
fragment_shader = "shaders/model.frag.spv"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.txt"), []byte("ignored"), 0o644))

	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(root))
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, root
}

func TestAssetManagerIndexesKnownTypes(t *testing.T) {
	am, root := newTestManager(t)

	assert.Equal(t, 4, am.Count())
	assert.True(t, am.Exists("models/tri.obj"))
	assert.True(t, am.Exists(filepath.Join(root, "models", "tri.obj")))
	assert.False(t, am.Exists("README.txt"))
}

func TestAssetManagerLoadGeometry(t *testing.T) {
	am, _ := newTestManager(t)

	g, err := am.LoadGeometry("models/tri.obj")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), g.VertexCount())
	assert.Equal(t, uint32(1), g.FaceCount())

	_, err = am.LoadGeometry("models/missing.obj")
	assert.ErrorIs(t, err, core.ErrAssetNotFound)

	_, err = am.LoadAsset("models/tri.obj", metadata.ResourceTypeImage, nil)
	assert.Error(t, err)
}

func TestAssetManagerLoadPipelineConfig(t *testing.T) {
	am, _ := newTestManager(t)

	cfg, err := am.LoadPipelineConfig("config/model_pipeline.toml")
	require.NoError(t, err)
	assert.Equal(t, "model", cfg.Name)
	assert.Equal(t, []uint32{0x07230203}, cfg.VertexShaderCode)
	assert.Len(t, cfg.FragmentShaderCode, 2)
}

func TestAssetManagerTracksFilesystemChanges(t *testing.T) {
	am, root := newTestManager(t)

	added := filepath.Join(root, "models", "added.obj")
	require.NoError(t, os.WriteFile(added, []byte(triangleObj), 0o644))
	assert.Eventually(t, func() bool { return am.Exists("models/added.obj") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(added))
	assert.Eventually(t, func() bool { return !am.Exists("models/added.obj") }, 2*time.Second, 10*time.Millisecond)
}

func TestAssetManagerShutdownIsIdempotent(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	assert.NoError(t, am.Shutdown())
	assert.NoError(t, am.Shutdown())
}
