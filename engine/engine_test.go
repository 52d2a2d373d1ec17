package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima3d/engine/assets"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/platform"
	"github.com/spaghettifunk/anima3d/engine/renderer"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
	"github.com/spaghettifunk/anima3d/engine/systems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	// order of the lifecycle calls, by name
	calls     []string
	beginErr  error
	begins    int
	ends      int
	resized   [2]uint32
	shutdowns int
}

func (b *stubBackend) RenderBufferCreate(bufferType metadata.RenderBufferType, totalSize uint64, memory metadata.MemoryPropertyFlags) (*metadata.RenderBuffer, error) {
	return &metadata.RenderBuffer{RenderBufferType: bufferType, TotalSize: totalSize, MemoryProperties: memory}, nil
}
func (b *stubBackend) RenderBufferDestroy(buffer *metadata.RenderBuffer) {}
func (b *stubBackend) RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	return nil
}
func (b *stubBackend) RenderBufferCopyRange(source *metadata.RenderBuffer, sourceOffset uint64, dest *metadata.RenderBuffer, destOffset uint64, size uint64) error {
	return nil
}
func (b *stubBackend) TextureCreate(pixels []uint8, texture *metadata.Texture) error { return nil }
func (b *stubBackend) TextureDestroy(texture *metadata.Texture)                    {}
func (b *stubBackend) ChainLength() uint32                                          { return 2 }
func (b *stubBackend) PipelineCreate(config *metadata.PipelineConfig) (renderer.Pipeline, error) {
	return nil, errors.New("no pipelines in this backend")
}
func (b *stubBackend) Initialize(appName string, appWidth, appHeight uint32) error { return nil }
func (b *stubBackend) Shutdown() error {
	b.calls = append(b.calls, "shutdown")
	b.shutdowns++
	return nil
}
func (b *stubBackend) WaitIdle() error {
	b.calls = append(b.calls, "wait_idle")
	return nil
}
func (b *stubBackend) Resized(width, height uint32) error {
	b.resized = [2]uint32{width, height}
	return nil
}
func (b *stubBackend) BeginFrame(deltaTime float64) error {
	b.begins++
	return b.beginErr
}
func (b *stubBackend) EndFrame(deltaTime float64) error {
	b.ends++
	return nil
}

type noAssets struct{}

func (noAssets) LoadGeometry(name string) (*metadata.GeometryData, error) {
	return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, name)
}
func (noAssets) LoadImage(name string) (*metadata.ImageData, error) {
	return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, name)
}
func (noAssets) LoadPipelineConfig(name string) (*metadata.PipelineConfig, error) {
	return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, name)
}

func newTestEngine(t *testing.T, g *Game) (*Engine, *stubBackend) {
	t.Helper()
	backend := &stubBackend{}
	config := core.DefaultEngineConfig()
	sm, err := systems.NewSystemManager(config, backend, noAssets{})
	require.NoError(t, err)
	am, err := assets.NewAssetManager()
	require.NoError(t, err)

	return &Engine{
		gameInstance:  g,
		config:        config,
		platform:      platform.New(),
		assetManager:  am,
		renderer:      backend,
		systemManager: sm,
		clock:         core.NewClock(),
		metrics:       core.NewFrameMetrics(),
		width:         config.Application.StartWidth,
		height:        config.Application.StartHeight,
	}, backend
}

func TestResolveEngineConfigFallsBackToDefaults(t *testing.T) {
	config := resolveEngineConfig(&ApplicationConfig{Name: "testbed", StartWidth: 640}, t.TempDir())
	assert.Equal(t, "testbed", config.Application.Name)
	assert.Equal(t, uint32(640), config.Application.StartWidth)
	assert.Equal(t, uint32(720), config.Application.StartHeight)
	assert.Equal(t, core.DefaultEngineConfig().Mesh, config.Mesh)
}

func TestResolveEngineConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "engine.toml"), []byte(`
[application]
name = "from-file"
log_level = "error"

[mesh]
max_meshes = 16
`), 0o644))

	config := resolveEngineConfig(&ApplicationConfig{Validation: true}, dir)
	assert.Equal(t, "from-file", config.Application.Name)
	assert.Equal(t, "error", config.Application.LogLevel)
	assert.True(t, config.Application.Validation)
	assert.Equal(t, uint32(16), config.Mesh.MaxMeshes)

	config = resolveEngineConfig(&ApplicationConfig{LogLevel: "debug"}, dir)
	assert.Equal(t, "debug", config.Application.LogLevel)
}

func TestDrawFrame(t *testing.T) {
	renders := 0
	e, backend := newTestEngine(t, &Game{
		ApplicationConfig: &ApplicationConfig{},
		FnRender: func(deltaTime float64) error {
			renders++
			return nil
		},
	})

	require.NoError(t, e.drawFrame(0.016))
	assert.Equal(t, 1, renders)
	assert.Equal(t, 1, backend.ends)

	// frames are skipped while the swapchain is rebuilt
	backend.beginErr = fmt.Errorf("recreating: %w", core.ErrSwapchainBooting)
	require.NoError(t, e.drawFrame(0.016))
	assert.Equal(t, 1, renders)
	assert.Equal(t, 1, backend.ends)

	backend.beginErr = errors.New("device lost")
	assert.Error(t, e.drawFrame(0.016))
	assert.Equal(t, 3, backend.begins)
}

func TestDrawFrameSubmitsOnRenderError(t *testing.T) {
	e, backend := newTestEngine(t, &Game{
		ApplicationConfig: &ApplicationConfig{},
		FnRender: func(deltaTime float64) error {
			return errors.New("boom")
		},
	})
	assert.EqualError(t, e.drawFrame(0.016), "boom")
	assert.Equal(t, 1, backend.ends)
}

func TestOnResizedSuspendsWhenMinimized(t *testing.T) {
	var gameSize [2]uint32
	e, backend := newTestEngine(t, &Game{
		ApplicationConfig: &ApplicationConfig{},
		FnOnResize: func(width, height uint32) error {
			gameSize = [2]uint32{width, height}
			return nil
		},
	})

	e.onResized(0, 0)
	assert.True(t, e.isSuspended)
	assert.Equal(t, [2]uint32{}, backend.resized)

	e.onResized(800, 400)
	assert.False(t, e.isSuspended)
	assert.Equal(t, [2]uint32{800, 400}, backend.resized)
	assert.Equal(t, [2]uint32{800, 400}, gameSize)
	assert.InDelta(t, 2.0, e.systemManager.Cameras().GetDefault().AspectRatio, 1e-6)
}

func TestShutdownWaitsForTheDeviceFirst(t *testing.T) {
	var backend *stubBackend
	var idleBeforeGame bool
	e, backend := newTestEngine(t, &Game{
		ApplicationConfig: &ApplicationConfig{},
		FnShutdown: func() error {
			idleBeforeGame = len(backend.calls) > 0 && backend.calls[0] == "wait_idle"
			return nil
		},
	})

	require.NoError(t, e.Shutdown())
	assert.True(t, idleBeforeGame)
	assert.Equal(t, []string{"wait_idle", "shutdown"}, backend.calls)
}

func TestShutdownRunsOnce(t *testing.T) {
	calls := 0
	e, backend := newTestEngine(t, &Game{
		ApplicationConfig: &ApplicationConfig{},
		FnShutdown: func() error {
			calls++
			return nil
		},
	})

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, backend.shutdowns)
}

func TestRunRequiresInitialize(t *testing.T) {
	e, _ := newTestEngine(t, &Game{ApplicationConfig: &ApplicationConfig{}})
	assert.ErrorIs(t, e.Run(), core.ErrNotInitialized)
}
