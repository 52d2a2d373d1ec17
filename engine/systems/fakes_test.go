package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/math"
	"github.com/spaghettifunk/anima3d/engine/renderer"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

type fakeBufferMemory struct {
	data []byte
}

type queuedDraw struct {
	vertexBuffer *metadata.RenderBuffer
	vertexCount  uint32
	indexBuffer  *metadata.RenderBuffer
	uniform      []byte
	texture      *metadata.Texture
}

type fakePipeline struct {
	draws     []queuedDraw
	destroyed bool
}

func (p *fakePipeline) QueueRender(vertexBuffer *metadata.RenderBuffer, vertexCount uint32, indexBuffer *metadata.RenderBuffer, uniformData []byte, texture *metadata.Texture) error {
	p.draws = append(p.draws, queuedDraw{
		vertexBuffer: vertexBuffer,
		vertexCount:  vertexCount,
		indexBuffer:  indexBuffer,
		uniform:      append([]byte(nil), uniformData...),
		texture:      texture,
	})
	return nil
}

func (p *fakePipeline) Destroy() {
	p.destroyed = true
}

// fakeBackend records every GPU object it hands out.
type fakeBackend struct {
	chainLength uint32

	live    map[*metadata.RenderBuffer]bool
	created []*metadata.RenderBuffer
	copies  int
	// failOn makes RenderBufferCreate fail for the given buffer type.
	failOn *metadata.RenderBufferType

	pipelineConfig *metadata.PipelineConfig
	pipeline       *fakePipeline
	pipelineErr    error

	textures map[*metadata.Texture]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainLength: 3,
		live:        make(map[*metadata.RenderBuffer]bool),
		textures:    make(map[*metadata.Texture]bool),
	}
}

func (b *fakeBackend) RenderBufferCreate(bufferType metadata.RenderBufferType, totalSize uint64, memory metadata.MemoryPropertyFlags) (*metadata.RenderBuffer, error) {
	if b.failOn != nil && *b.failOn == bufferType {
		return nil, fmt.Errorf("out of device memory for %s buffer", bufferType)
	}
	buffer := &metadata.RenderBuffer{
		RenderBufferType: bufferType,
		TotalSize:        totalSize,
		MemoryProperties: memory,
		InternalData:     &fakeBufferMemory{data: make([]byte, totalSize)},
	}
	b.live[buffer] = true
	b.created = append(b.created, buffer)
	return buffer, nil
}

func (b *fakeBackend) RenderBufferDestroy(buffer *metadata.RenderBuffer) {
	if buffer == nil {
		return
	}
	delete(b.live, buffer)
}

func (b *fakeBackend) RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	if !buffer.MemoryProperties.Has(metadata.MemoryPropertyHostVisible) {
		return errors.New("buffer is not host visible")
	}
	copy(buffer.InternalData.(*fakeBufferMemory).data[offset:], data)
	return nil
}

func (b *fakeBackend) RenderBufferCopyRange(source *metadata.RenderBuffer, sourceOffset uint64, dest *metadata.RenderBuffer, destOffset uint64, size uint64) error {
	src := source.InternalData.(*fakeBufferMemory).data[sourceOffset : sourceOffset+size]
	copy(dest.InternalData.(*fakeBufferMemory).data[destOffset:], src)
	b.copies++
	return nil
}

func (b *fakeBackend) ChainLength() uint32 {
	return b.chainLength
}

func (b *fakeBackend) PipelineCreate(config *metadata.PipelineConfig) (renderer.Pipeline, error) {
	if b.pipelineErr != nil {
		return nil, b.pipelineErr
	}
	b.pipelineConfig = config
	b.pipeline = &fakePipeline{}
	return b.pipeline, nil
}

func (b *fakeBackend) TextureCreate(pixels []uint8, texture *metadata.Texture) error {
	b.textures[texture] = true
	texture.InternalData = len(pixels)
	return nil
}

func (b *fakeBackend) TextureDestroy(texture *metadata.Texture) {
	delete(b.textures, texture)
}

func (b *fakeBackend) liveOfType(bufferType metadata.RenderBufferType) int {
	n := 0
	for buffer := range b.live {
		if buffer.RenderBufferType == bufferType {
			n++
		}
	}
	return n
}

func bufferData(buffer *metadata.RenderBuffer) []byte {
	return buffer.InternalData.(*fakeBufferMemory).data
}

// fakeAssets serves geometry and images from memory.
type fakeAssets struct {
	geometry       map[string]*metadata.GeometryData
	images         map[string]*metadata.ImageData
	pipelineConfig *metadata.PipelineConfig
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{
		geometry: map[string]*metadata.GeometryData{
			"models/triangle.obj": triangleGeometry(),
			"models/points.obj":   pointsGeometry(),
		},
		images: map[string]*metadata.ImageData{
			"images/default.png": {Name: "images/default.png", Width: 2, Height: 1, ChannelCount: 4, Pixels: []byte{255, 0, 0, 255, 0, 255, 0, 255}},
			"images/glass.png":   {Name: "images/glass.png", Width: 1, Height: 1, ChannelCount: 4, Pixels: []byte{10, 20, 30, 128}},
		},
		pipelineConfig: &metadata.PipelineConfig{
			Name:               "model",
			VertexShader:       "shaders/model.vert.spv",
			FragmentShader:     "shaders/model.frag.spv",
			CullMode:           metadata.CullModeBack,
			DepthTest:          true,
			DepthWrite:         true,
			VertexShaderCode:   []uint32{0x07230203},
			FragmentShaderCode: []uint32{0x07230203},
		},
	}
}

func (a *fakeAssets) LoadGeometry(name string) (*metadata.GeometryData, error) {
	g, ok := a.geometry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrParseFailed, name)
	}
	clone := *g
	return &clone, nil
}

func (a *fakeAssets) LoadImage(name string) (*metadata.ImageData, error) {
	img, ok := a.images[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, name)
	}
	return img, nil
}

func (a *fakeAssets) LoadPipelineConfig(name string) (*metadata.PipelineConfig, error) {
	if a.pipelineConfig == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, name)
	}
	clone := *a.pipelineConfig
	return &clone, nil
}

type fixedCamera struct {
	view       math.Mat4
	projection math.Mat4
}

func (c *fixedCamera) GetView() math.Mat4 {
	return c.view
}

func (c *fixedCamera) GetProjection() math.Mat4 {
	return c.projection
}

func triangleGeometry() *metadata.GeometryData {
	return &metadata.GeometryData{
		Name: "triangle",
		Vertices: []math.Vertex3D{
			{Position: math.NewVec3(0, 0, 0), Normal: math.NewVec3(0, 0, 1), Texcoord: math.NewVec2(0, 0)},
			{Position: math.NewVec3(1, 0, 0), Normal: math.NewVec3(0, 0, 1), Texcoord: math.NewVec2(1, 0)},
			{Position: math.NewVec3(0, 1, 0), Normal: math.NewVec3(0, 0, 1), Texcoord: math.NewVec2(0, 1)},
		},
		Faces: []metadata.Face{{Verts: [3]uint16{0, 1, 2}}},
	}
}

func pointsGeometry() *metadata.GeometryData {
	return &metadata.GeometryData{
		Name: "points",
		Vertices: []math.Vertex3D{
			{Position: math.NewVec3(1, 2, 3)},
			{Position: math.NewVec3(4, 5, 6)},
		},
	}
}

func (b *fakeBackend) Initialize(appName string, appWidth, appHeight uint32) error { return nil }
func (b *fakeBackend) Shutdown() error                                            { return nil }
func (b *fakeBackend) Resized(width, height uint32) error                         { return nil }
func (b *fakeBackend) WaitIdle() error                                             { return nil }
func (b *fakeBackend) BeginFrame(deltaTime float64) error                         { return nil }
func (b *fakeBackend) EndFrame(deltaTime float64) error                           { return nil }
