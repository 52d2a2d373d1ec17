package systems

import (
	"testing"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextureSystemDefaultFromImage(t *testing.T) {
	backend := newFakeBackend()
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 2, DefaultTexturePath: "images/default.png"}, newFakeAssets(), backend)
	require.NoError(t, err)
	require.NoError(t, ts.Initialize())

	def := ts.GetDefault()
	require.NotNil(t, def)
	assert.Equal(t, metadata.DEFAULT_TEXTURE_NAME, def.Name)
	assert.Equal(t, uint32(2), def.Width)
	assert.Equal(t, uint32(1), def.Height)
	assert.False(t, def.HasTransparency)
	assert.True(t, backend.textures[def])

	assert.ErrorIs(t, ts.Initialize(), core.ErrAlreadyInitialized)
}

func TestTextureSystemGeneratesCheckerboard(t *testing.T) {
	backend := newFakeBackend()
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 2, DefaultTexturePath: "images/nope.png"}, newFakeAssets(), backend)
	require.NoError(t, err)
	require.NoError(t, ts.Initialize())

	def := ts.GetDefault()
	assert.Equal(t, uint32(256), def.Width)
	assert.Equal(t, uint32(256), def.Height)
	assert.Equal(t, uint8(4), def.ChannelCount)
	assert.Equal(t, 256*256*4, def.InternalData)
}

func TestTextureSystemReferenceCounting(t *testing.T) {
	backend := newFakeBackend()
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 1, DefaultTexturePath: "images/default.png"}, newFakeAssets(), backend)
	require.NoError(t, err)

	_, err = ts.Load("images/glass.png")
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	require.NoError(t, ts.Initialize())

	glass, err := ts.Load("images/glass.png")
	require.NoError(t, err)
	assert.True(t, glass.HasTransparency)
	again, err := ts.Load("images/glass.png")
	require.NoError(t, err)
	assert.Same(t, glass, again)
	assert.Equal(t, 1, ts.Count())

	// the default never takes a slot
	def, err := ts.Load("images/default.png")
	require.NoError(t, err)
	assert.Same(t, ts.GetDefault(), def)
	def, err = ts.Load(metadata.DEFAULT_TEXTURE_NAME)
	require.NoError(t, err)
	assert.Same(t, ts.GetDefault(), def)

	_, err = ts.Load("images/default2.png")
	assert.ErrorIs(t, err, core.ErrPoolExhausted)

	ts.Release(glass)
	assert.True(t, backend.textures[glass])
	ts.Release(glass)
	assert.False(t, backend.textures[glass])
	assert.Equal(t, 0, ts.Count())

	assert.NotPanics(t, func() {
		ts.Release(nil)
		ts.Release(glass)
		ts.Release(ts.GetDefault())
	})
	assert.True(t, backend.textures[ts.GetDefault()])

	_, err = ts.Load("images/missing.png")
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
	assert.Equal(t, 0, ts.Count())
}

func TestTextureSystemShutdown(t *testing.T) {
	backend := newFakeBackend()
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 4}, newFakeAssets(), backend)
	require.NoError(t, err)
	require.NoError(t, ts.Initialize())
	_, err = ts.Load("images/glass.png")
	require.NoError(t, err)

	require.NoError(t, ts.Shutdown())
	assert.Empty(t, backend.textures)
	assert.Nil(t, ts.DefaultTexture)
	assert.Equal(t, 0, ts.Count())
	assert.NoError(t, ts.Shutdown())
}

func TestNewTextureSystemZeroCapacity(t *testing.T) {
	_, err := NewTextureSystem(&TextureSystemConfig{}, newFakeAssets(), newFakeBackend())
	assert.ErrorIs(t, err, core.ErrZeroCapacity)
}
