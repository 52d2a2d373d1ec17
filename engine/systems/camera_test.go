package systems

import (
	"testing"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/components"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCameraSystemAcquireRelease(t *testing.T) {
	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 1})
	require.NoError(t, err)

	def, err := cs.Acquire(components.DEFAULT_CAMERA_NAME)
	require.NoError(t, err)
	assert.Same(t, cs.GetDefault(), def)

	world, err := cs.Acquire("world")
	require.NoError(t, err)
	again, err := cs.Acquire("world")
	require.NoError(t, err)
	assert.Same(t, world, again)

	_, err = cs.Acquire("minimap")
	assert.ErrorIs(t, err, core.ErrPoolExhausted)

	cs.Release("world")
	cs.Release("world")
	minimap, err := cs.Acquire("minimap")
	require.NoError(t, err)
	assert.NotSame(t, world, minimap)

	assert.NotPanics(t, func() {
		cs.Release("unknown")
		cs.Release(components.DEFAULT_CAMERA_NAME)
	})
}

func TestCameraSystemOnResize(t *testing.T) {
	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 2})
	require.NoError(t, err)
	world, err := cs.Acquire("world")
	require.NoError(t, err)

	cs.OnResize(800, 400)
	assert.InDelta(t, 2.0, cs.GetDefault().AspectRatio, 1e-6)
	assert.InDelta(t, 2.0, world.AspectRatio, 1e-6)
}

func TestNewCameraSystemZeroCapacity(t *testing.T) {
	_, err := NewCameraSystem(&CameraSystemConfig{})
	assert.ErrorIs(t, err, core.ErrZeroCapacity)
}
