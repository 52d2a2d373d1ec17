package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima3d/engine/containers"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexInputFromLayout(t *testing.T) {
	binding, attributes, err := vertexInput(metadata.NewVertex3DLayout())
	require.NoError(t, err)

	assert.Equal(t, uint32(32), binding.Stride)
	assert.Equal(t, vk.VertexInputRateVertex, binding.InputRate)
	require.Len(t, attributes, 3)
	assert.Equal(t, vk.FormatR32g32b32Sfloat, attributes[0].Format)
	assert.Equal(t, vk.FormatR32g32b32Sfloat, attributes[1].Format)
	assert.Equal(t, vk.FormatR32g32Sfloat, attributes[2].Format)
	assert.Equal(t, uint32(24), attributes[2].Offset)

	_, _, err = vertexInput(metadata.VertexLayout{
		Attributes: []metadata.VertexAttributeDescription{{Format: metadata.VertexFormat(42)}},
	})
	assert.Error(t, err)
}

func TestCullModeFlags(t *testing.T) {
	assert.Equal(t, vk.CullModeFlags(vk.CullModeNone), cullModeFlags(metadata.CullModeNone))
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), cullModeFlags(metadata.CullModeBack))
	assert.Equal(t, vk.CullModeFlags(vk.CullModeFrontBit), cullModeFlags(metadata.CullModeFront))
}

func TestUniformStride(t *testing.T) {
	assert.Equal(t, uint64(256), uniformStride(uint64(metadata.MeshUBOSize), 256))
	assert.Equal(t, uint64(208), uniformStride(uint64(metadata.MeshUBOSize), 16))
	assert.Equal(t, uint64(208), uniformStride(uint64(metadata.MeshUBOSize), 0))
}

func TestIndexType(t *testing.T) {
	assert.Equal(t, vk.IndexTypeUint16, indexType(metadata.IndexTypeUint16))
	assert.Equal(t, vk.IndexTypeUint32, indexType(metadata.IndexTypeUint32))
}

func validConfig() *metadata.PipelineConfig {
	return &metadata.PipelineConfig{
		Name:               "model",
		VertexLayout:       metadata.NewVertex3DLayout(),
		MaxDraws:           2,
		UniformSize:        metadata.MeshUBOSize,
		ChainLength:        2,
		VertexShaderCode:   []uint32{0x07230203},
		FragmentShaderCode: []uint32{0x07230203},
	}
}

func TestValidatePipelineConfig(t *testing.T) {
	assert.NoError(t, validatePipelineConfig(validConfig()))
	assert.Error(t, validatePipelineConfig(nil))

	c := validConfig()
	c.MaxDraws = 0
	assert.ErrorIs(t, validatePipelineConfig(c), core.ErrZeroCapacity)

	c = validConfig()
	c.FragmentShaderCode = nil
	assert.Error(t, validatePipelineConfig(c))

	c = validConfig()
	c.ChainLength = 0
	assert.Error(t, validatePipelineConfig(c))
}

func TestModelPipelineQueueRender(t *testing.T) {
	config := validConfig()
	mp := &ModelPipeline{
		config: *config,
		queue:  containers.NewRingQueue[drawCall](int(config.MaxDraws)),
	}

	vertices := &metadata.RenderBuffer{RenderBufferType: metadata.RENDERBUFFER_TYPE_VERTEX, TotalSize: 96, InternalData: &VulkanBuffer{}}
	indices := &metadata.RenderBuffer{RenderBufferType: metadata.RENDERBUFFER_TYPE_INDEX, TotalSize: 6, InternalData: &VulkanBuffer{}}
	texture := &metadata.Texture{Name: "default", InternalData: &VulkanTexture{}}
	ubo := make([]byte, metadata.MeshUBOSize)

	require.NoError(t, mp.QueueRender(vertices, 3, indices, ubo, texture))
	call, err := mp.queue.Peek()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), call.indexCount)
	assert.Equal(t, uint32(3), call.vertexCount)

	// the uniform block is copied at queue time
	ubo[0] = 0xff
	assert.Equal(t, byte(0), call.uniformData[0])

	require.NoError(t, mp.QueueRender(vertices, 3, nil, ubo, texture))
	assert.ErrorIs(t, mp.QueueRender(vertices, 3, nil, ubo, texture), containers.ErrQueueFull)
	assert.Equal(t, 2, mp.queue.Len())

	mp.discard()
	assert.True(t, mp.queue.IsEmpty())
}

func TestModelPipelineQueueRenderRejectsBadInput(t *testing.T) {
	config := validConfig()
	mp := &ModelPipeline{
		config: *config,
		queue:  containers.NewRingQueue[drawCall](int(config.MaxDraws)),
	}
	vertices := &metadata.RenderBuffer{TotalSize: 96, InternalData: &VulkanBuffer{}}
	texture := &metadata.Texture{InternalData: &VulkanTexture{}}
	ubo := make([]byte, metadata.MeshUBOSize)

	assert.Error(t, mp.QueueRender(vertices, 0, nil, ubo, texture))
	assert.Error(t, mp.QueueRender(vertices, 3, nil, nil, texture))
	assert.Error(t, mp.QueueRender(vertices, 3, nil, make([]byte, metadata.MeshUBOSize+1), texture))
	assert.Error(t, mp.QueueRender(&metadata.RenderBuffer{}, 3, nil, ubo, texture))
	assert.Error(t, mp.QueueRender(vertices, 3, nil, ubo, &metadata.Texture{}))
	assert.Error(t, mp.QueueRender(vertices, 3, nil, ubo, nil))
	assert.True(t, mp.queue.IsEmpty())
}
