package systems

import (
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/math"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMeshSystem(t *testing.T, capacity uint32) (*MeshSystem, *fakeBackend, *TextureSystem) {
	t.Helper()
	backend := newFakeBackend()
	assets := newFakeAssets()
	textures, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount:    4,
		DefaultTexturePath: "images/default.png",
	}, assets, backend)
	require.NoError(t, err)
	require.NoError(t, textures.Initialize())

	camera := &fixedCamera{
		view:       math.NewMat4Identity(),
		projection: math.NewMat4Translation(math.NewVec3(0, 0, -5)),
	}
	ms, err := NewMeshSystem(&MeshSystemConfig{
		MaxMeshCount:       capacity,
		PipelineConfig:     assets.pipelineConfig,
		DefaultTexturePath: "images/default.png",
	}, backend, textures, assets, camera)
	require.NoError(t, err)
	return ms, backend, textures
}

func TestNewMeshSystemRequiresCollaborators(t *testing.T) {
	backend := newFakeBackend()
	_, err := NewMeshSystem(nil, backend, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewMeshSystem(&MeshSystemConfig{MaxMeshCount: 1}, backend, nil, newFakeAssets(), &fixedCamera{})
	assert.Error(t, err)
}

func TestMeshSystemInitialize(t *testing.T) {
	ms, backend, textures := newTestMeshSystem(t, 4)
	require.NoError(t, ms.Initialize())

	assert.True(t, ms.IsInitialized())
	assert.Equal(t, uint32(4), ms.Capacity())
	assert.Equal(t, uint32(0), ms.Count())
	assert.Equal(t, uint32(3), ms.ChainLength())
	assert.Same(t, backend.pipeline, ms.GetPipeline())
	assert.Same(t, textures.GetDefault(), ms.DefaultTexture())

	config := backend.pipelineConfig
	require.NotNil(t, config)
	assert.Equal(t, "model", config.Name)
	assert.Equal(t, uint32(4), config.MaxDraws)
	assert.Equal(t, uint32(208), config.UniformSize)
	assert.Equal(t, metadata.IndexTypeUint16, config.IndexType)
	assert.Equal(t, uint32(3), config.ChainLength)
	assert.Equal(t, metadata.NewVertex3DLayout(), config.VertexLayout)
	assert.Equal(t, metadata.NewVertex3DLayout(), ms.VertexLayout())

	assert.ErrorIs(t, ms.Initialize(), core.ErrAlreadyInitialized)
}

func TestMeshSystemZeroCapacity(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 0)

	assert.ErrorIs(t, ms.Initialize(), core.ErrZeroCapacity)
	assert.False(t, ms.IsInitialized())
	assert.Nil(t, ms.GetPipeline())
	assert.Nil(t, backend.pipeline)
	assert.Equal(t, uint32(0), ms.Capacity())

	mesh, err := ms.Load("models/triangle.obj")
	assert.Nil(t, mesh)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	assert.Empty(t, backend.created)
}

func TestMeshSystemPipelineFailure(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 2)
	backend.pipelineErr = errors.New("shader module rejected")

	assert.Error(t, ms.Initialize())
	assert.False(t, ms.IsInitialized())
	assert.Equal(t, uint32(0), ms.Capacity())
	assert.Nil(t, ms.GetPipeline())
}

func TestMeshSystemLoadUploadsThroughStaging(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 4)
	require.NoError(t, ms.Initialize())

	mesh, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)
	require.NotNil(t, mesh)
	assert.Equal(t, "models/triangle.obj", mesh.Filename)
	assert.Equal(t, uint32(1), mesh.ReferenceCount)
	assert.Equal(t, uint32(1), ms.Count())
	require.Len(t, mesh.Primitives, 1)

	geometry := triangleGeometry()
	primitive := mesh.Primitives[0]
	assert.Equal(t, uint32(3), primitive.VertexCount)
	assert.Equal(t, uint32(1), primitive.FaceCount)

	require.NotNil(t, primitive.VertexBuffer)
	assert.Equal(t, metadata.RENDERBUFFER_TYPE_VERTEX, primitive.VertexBuffer.RenderBufferType)
	assert.True(t, primitive.VertexBuffer.MemoryProperties.Has(metadata.MemoryPropertyDeviceLocal))
	assert.Equal(t, uint64(3*32), primitive.VertexBuffer.TotalSize)
	assert.Equal(t, geometry.VertexBytes(), bufferData(primitive.VertexBuffer))

	require.NotNil(t, primitive.FaceBuffer)
	assert.Equal(t, metadata.RENDERBUFFER_TYPE_INDEX, primitive.FaceBuffer.RenderBufferType)
	assert.Equal(t, uint64(6), primitive.FaceBuffer.TotalSize)
	assert.Equal(t, geometry.FaceBytes(), bufferData(primitive.FaceBuffer))

	// two staging buffers were used and destroyed
	assert.Len(t, backend.created, 4)
	assert.Equal(t, 2, backend.copies)
	assert.Equal(t, 0, backend.liveOfType(metadata.RENDERBUFFER_TYPE_STAGING))
	assert.Len(t, backend.live, 2)
}

func TestMeshSystemCapacityIsNeverExceeded(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())

	first, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)
	second, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	third, err := ms.Load("models/triangle.obj")
	assert.Nil(t, third)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)

	assert.Equal(t, uint32(2), ms.Count())
	assert.Equal(t, uint32(2), ms.Capacity())
	assert.Equal(t, uint32(1), first.ReferenceCount)
	assert.Equal(t, uint32(1), second.ReferenceCount)
	assert.Len(t, backend.live, 4)
}

func TestMeshSystemReleaseFreesSlot(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 1)
	require.NoError(t, ms.Initialize())

	mesh, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)
	primitive := mesh.Primitives[0]
	generation := mesh.Generation

	ms.Release(mesh)
	assert.Nil(t, primitive.VertexBuffer)
	assert.Nil(t, primitive.FaceBuffer)
	assert.Empty(t, backend.live)
	assert.Equal(t, uint32(0), ms.Count())
	assert.Equal(t, uint32(0), mesh.ReferenceCount)
	assert.Nil(t, ms.FindByFilename("models/triangle.obj"))

	// releasing a free slot does nothing
	ms.Release(mesh)
	assert.Equal(t, uint32(0), ms.Count())

	reused, err := ms.Load("models/points.obj")
	require.NoError(t, err)
	assert.Same(t, mesh, reused)
	assert.Equal(t, generation+1, reused.Generation)
	assert.Equal(t, "models/points.obj", reused.Filename)
}

func TestMeshSystemLoadParseFailure(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())

	mesh, err := ms.Load("models/missing.obj")
	assert.Nil(t, mesh)
	assert.ErrorIs(t, err, core.ErrParseFailed)
	assert.Equal(t, uint32(0), ms.Count())
	assert.Empty(t, backend.created)

	_, err = ms.Load("")
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
}

func TestMeshSystemUploadFailureReleasesSlot(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())
	failOn := metadata.RENDERBUFFER_TYPE_INDEX
	backend.failOn = &failOn

	mesh, err := ms.Load("models/triangle.obj")
	assert.Nil(t, mesh)
	assert.ErrorIs(t, err, core.ErrBufferCreate)
	assert.Equal(t, uint32(0), ms.Count())
	assert.Empty(t, backend.live)
	assert.Nil(t, ms.FindByFilename("models/triangle.obj"))
}

func TestMeshSystemGeometryWithoutFaces(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())

	mesh, err := ms.Load("models/points.obj")
	require.NoError(t, err)
	primitive := mesh.Primitives[0]
	assert.NotNil(t, primitive.VertexBuffer)
	assert.Nil(t, primitive.FaceBuffer)
	assert.Equal(t, uint32(2), primitive.VertexCount)
	assert.Equal(t, uint32(0), primitive.FaceCount)
	assert.Equal(t, 0, backend.liveOfType(metadata.RENDERBUFFER_TYPE_INDEX))

	ms.Draw(mesh, math.NewMat4Identity(), math.ColorWhite, nil)
	require.Len(t, backend.pipeline.draws, 1)
	assert.Nil(t, backend.pipeline.draws[0].indexBuffer)
	assert.Equal(t, uint32(2), backend.pipeline.draws[0].vertexCount)
}

func TestMeshSystemNilSafety(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())
	mesh, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		ms.Release(nil)
		ms.FreePrimitive(nil)
		ms.Draw(nil, math.NewMat4Identity(), math.ColorWhite, nil)
		ms.QueueRender(nil, backend.pipeline, nil, nil)
		ms.QueueRender(mesh, nil, nil, nil)
		ms.QueuePrimitive(nil, backend.pipeline, nil, nil)
		ms.QueueRender(mesh, backend.pipeline, nil, nil)
		ms.QueuePrimitive(mesh.Primitives[0], backend.pipeline, nil, nil)
		ms.QueuePrimitive(mesh.Primitives[0], backend.pipeline, []byte{}, nil)
		ms.Release(&metadata.Mesh{ReferenceCount: 1})
	})
	assert.Empty(t, backend.pipeline.draws)
	assert.Equal(t, uint32(1), ms.Count())
	assert.Equal(t, uint32(1), mesh.ReferenceCount)
	assert.Len(t, backend.live, 2)

	// freeing twice is harmless
	primitive := mesh.Primitives[0]
	ms.FreePrimitive(primitive)
	ms.FreePrimitive(primitive)
	assert.Empty(t, backend.live)
}

func TestMeshSystemSharedMeshKeepsBuffersUntilLastRelease(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())
	mesh, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)
	require.NoError(t, ms.AddRef(mesh))
	assert.Equal(t, uint32(2), mesh.ReferenceCount)

	ms.Release(mesh)
	assert.Equal(t, uint32(1), mesh.ReferenceCount)
	assert.Len(t, backend.live, 2)
	require.Len(t, mesh.Primitives, 1)
	assert.NotNil(t, mesh.Primitives[0].VertexBuffer)
	assert.Same(t, mesh, ms.FindByFilename("models/triangle.obj"))

	ms.Draw(mesh, math.NewMat4Identity(), math.ColorWhite, nil)
	assert.Len(t, backend.pipeline.draws, 1)

	ms.Release(mesh)
	assert.Empty(t, backend.live)
	assert.Equal(t, uint32(0), ms.Count())
	assert.Nil(t, ms.FindByFilename("models/triangle.obj"))
}

func TestMeshSystemAddRefRejectsForeignAndFreeMeshes(t *testing.T) {
	ms, _, _ := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())

	assert.Error(t, ms.AddRef(nil))
	foreign := &metadata.Mesh{ReferenceCount: 1}
	assert.Error(t, ms.AddRef(foreign))
	assert.Equal(t, uint32(1), foreign.ReferenceCount)

	mesh, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)
	ms.Release(mesh)
	assert.Error(t, ms.AddRef(mesh))
	assert.Equal(t, uint32(0), mesh.ReferenceCount)
	assert.Equal(t, uint32(0), ms.Count())
}

func TestMeshSystemDrawUsesDefaultTexture(t *testing.T) {
	ms, backend, textures := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())
	mesh, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)

	model := math.NewMat4Translation(math.NewVec3(1, 2, 3))
	color := math.NewColor(0.5, 0.25, 1, 1)
	ms.Draw(mesh, model, color, nil)

	require.Len(t, backend.pipeline.draws, 1)
	draw := backend.pipeline.draws[0]
	assert.Same(t, textures.GetDefault(), draw.texture)
	assert.Same(t, mesh.Primitives[0].VertexBuffer, draw.vertexBuffer)
	assert.Same(t, mesh.Primitives[0].FaceBuffer, draw.indexBuffer)
	assert.Equal(t, uint32(3), draw.vertexCount)
	require.Len(t, draw.uniform, int(metadata.MeshUBOSize))

	ubo, err := metadata.DecodeMeshUBO(draw.uniform)
	require.NoError(t, err)
	assert.Equal(t, model, ubo.Model)
	assert.Equal(t, math.NewMat4Identity(), ubo.View)
	assert.Equal(t, math.NewMat4Translation(math.NewVec3(0, 0, -5)), ubo.Proj)
	assert.Equal(t, color.ToVec4(), ubo.Color)

	glass, err := textures.Load("images/glass.png")
	require.NoError(t, err)
	ms.Draw(mesh, model, color, glass)
	require.Len(t, backend.pipeline.draws, 2)
	assert.Same(t, glass, backend.pipeline.draws[1].texture)
}

func TestMeshSystemShutdownReclaimsEverything(t *testing.T) {
	ms, backend, textures := newTestMeshSystem(t, 3)
	ms.Config.DefaultTexturePath = "images/glass.png"
	require.NoError(t, ms.Initialize())
	assert.Equal(t, 1, textures.Count())

	leaked, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)
	_, err = ms.Load("models/points.obj")
	require.NoError(t, err)
	pipeline := backend.pipeline

	require.NoError(t, ms.Shutdown())
	assert.Empty(t, backend.live)
	assert.True(t, pipeline.destroyed)
	assert.Equal(t, 0, textures.Count())
	assert.False(t, ms.IsInitialized())
	assert.Equal(t, uint32(0), ms.Capacity())
	assert.Equal(t, uint32(0), ms.Count())
	assert.Equal(t, uint32(0), ms.ChainLength())
	assert.Nil(t, ms.GetPipeline())
	assert.Nil(t, ms.DefaultTexture())

	assert.NoError(t, ms.Shutdown())
	assert.NotPanics(t, func() { ms.Release(leaked) })

	require.NoError(t, ms.Initialize())
	assert.Equal(t, uint32(3), ms.Capacity())
}

func TestMeshSystemFindByFilename(t *testing.T) {
	ms, _, _ := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())
	mesh, err := ms.Load("models/triangle.obj")
	require.NoError(t, err)

	assert.Same(t, mesh, ms.FindByFilename("models/triangle.obj"))
	assert.Equal(t, uint32(1), mesh.ReferenceCount)
	assert.Nil(t, ms.FindByFilename("models/points.obj"))
}

func TestMeshSystemLoadAsync(t *testing.T) {
	ms, backend, _ := newTestMeshSystem(t, 2)
	require.NoError(t, ms.Initialize())
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)
	defer js.Shutdown()

	var loaded, failed *metadata.Mesh
	var loadErr, failErr error
	done := 0
	require.NoError(t, ms.LoadAsync(js, "models/triangle.obj", func(mesh *metadata.Mesh, err error) {
		loaded, loadErr = mesh, err
		done++
	}))
	require.NoError(t, ms.LoadAsync(js, "models/missing.obj", func(mesh *metadata.Mesh, err error) {
		failed, failErr = mesh, err
		done++
	}))

	require.Eventually(t, func() bool {
		js.Update()
		return done == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, loadErr)
	require.NotNil(t, loaded)
	assert.Equal(t, "models/triangle.obj", loaded.Filename)
	assert.Nil(t, failed)
	assert.ErrorIs(t, failErr, core.ErrParseFailed)
	assert.Equal(t, uint32(1), ms.Count())
	assert.Len(t, backend.live, 2)
}
