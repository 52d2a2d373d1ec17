package systems

import (
	"testing"
	"time"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemManagerLifecycle(t *testing.T) {
	config := core.DefaultEngineConfig()
	config.Mesh.MaxMeshes = 8
	config.Entity.MaxEntities = 8
	backend := newFakeBackend()

	sm, err := NewSystemManager(config, backend, newFakeAssets())
	require.NoError(t, err)
	require.NoError(t, sm.Initialize())

	assert.True(t, sm.Meshes().IsInitialized())
	assert.Equal(t, "model", backend.pipelineConfig.Name)
	assert.Equal(t, uint32(8), backend.pipelineConfig.MaxDraws)
	assert.NotNil(t, sm.Textures().GetDefault())

	done := false
	var loadErr error
	require.NoError(t, sm.Meshes().LoadAsync(sm.Jobs(), "models/triangle.obj", func(mesh *metadata.Mesh, err error) {
		done = true
		if loadErr = err; err != nil {
			return
		}
		var e *Entity
		if e, loadErr = sm.Entities().New(); loadErr == nil {
			e.Mesh = mesh
		}
	}))
	require.Eventually(t, func() bool {
		sm.Update()
		return done
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, loadErr)

	sm.OnResize(1000, 500)
	assert.InDelta(t, 2.0, sm.Cameras().GetDefault().AspectRatio, 1e-6)

	sm.Entities().DrawAll()
	assert.Len(t, backend.pipeline.draws, 1)

	require.NoError(t, sm.Shutdown())
	assert.Empty(t, backend.live)
	assert.Empty(t, backend.textures)
	assert.True(t, backend.pipeline.destroyed)
	assert.Equal(t, uint32(0), sm.Entities().Count())
}

func TestSystemManagerMissingPipelineConfig(t *testing.T) {
	assets := newFakeAssets()
	assets.pipelineConfig = nil
	sm, err := NewSystemManager(core.DefaultEngineConfig(), newFakeBackend(), assets)
	require.NoError(t, err)

	assert.ErrorIs(t, sm.Initialize(), core.ErrAssetNotFound)
	assert.False(t, sm.Meshes().IsInitialized())
	require.NoError(t, sm.Shutdown())
}
