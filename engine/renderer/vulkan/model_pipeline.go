package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima3d/engine/containers"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

const (
	modelUniformBinding uint32 = 0
	modelSamplerBinding uint32 = 1
)

// One queued draw, resolved to Vulkan handles at queue time.
type drawCall struct {
	vertexBuffer *VulkanBuffer
	vertexCount  uint32
	indexBuffer  *VulkanBuffer
	indexCount   uint32
	uniformData  []byte
	texture      *VulkanTexture
}

// Resources owned by one frame in flight.
type modelFrame struct {
	uniformBuffer  *VulkanBuffer
	descriptorPool vk.DescriptorPool
}

/**
 * @brief Pipeline drawing textured geometry with a per-draw uniform block
 * at binding 0 and a combined image sampler at binding 1. Draws are
 * queued during the frame and recorded by the renderer before the main
 * renderpass ends.
 */
type ModelPipeline struct {
	renderer *VulkanRenderer
	config   metadata.PipelineConfig

	pipeline            *VulkanPipeline
	descriptorSetLayout vk.DescriptorSetLayout
	stages              []*VulkanShaderStage

	uniformStride uint64
	frames        []modelFrame
	queue         *containers.RingQueue[drawCall]
}

// uniformStride is the distance between two uniform blocks in the per-frame buffer.
func uniformStride(size, alignment uint64) uint64 {
	if alignment == 0 {
		alignment = 1
	}
	return metadata.GetAligned(size, alignment)
}

func indexType(t metadata.IndexType) vk.IndexType {
	if t == metadata.IndexTypeUint32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

func validatePipelineConfig(config *metadata.PipelineConfig) error {
	switch {
	case config == nil:
		return fmt.Errorf("nil pipeline config")
	case config.MaxDraws == 0:
		return fmt.Errorf("pipeline `%s`: %w", config.Name, core.ErrZeroCapacity)
	case config.UniformSize == 0:
		return fmt.Errorf("pipeline `%s` has no uniform block", config.Name)
	case config.ChainLength == 0:
		return fmt.Errorf("pipeline `%s` has a chain length of 0", config.Name)
	case len(config.VertexShaderCode) == 0 || len(config.FragmentShaderCode) == 0:
		return fmt.Errorf("pipeline `%s` is missing shader code", config.Name)
	case len(config.VertexLayout.Attributes) == 0:
		return fmt.Errorf("pipeline `%s` has no vertex attributes", config.Name)
	}
	return nil
}

func (vr *VulkanRenderer) PipelineCreate(config *metadata.PipelineConfig) (renderer.Pipeline, error) {
	if err := validatePipelineConfig(config); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	mp := &ModelPipeline{
		renderer: vr,
		config:   *config,
		queue:    containers.NewRingQueue[drawCall](int(config.MaxDraws)),
	}
	if err := mp.create(); err != nil {
		mp.release()
		return nil, err
	}

	vr.pipelines = append(vr.pipelines, mp)
	core.LogInfo("pipeline `%s` created (%d draws per frame, %d frames)", config.Name, config.MaxDraws, config.ChainLength)
	return mp, nil
}

func (mp *ModelPipeline) create() error {
	context := mp.renderer.context
	device := context.Device.LogicalDevice

	vertexStage, err := NewShaderStage(context, mp.config.VertexShader, mp.config.VertexShaderCode, vk.ShaderStageVertexBit)
	if err != nil {
		return err
	}
	mp.stages = append(mp.stages, vertexStage)
	fragmentStage, err := NewShaderStage(context, mp.config.FragmentShader, mp.config.FragmentShaderCode, vk.ShaderStageFragmentBit)
	if err != nil {
		return err
	}
	mp.stages = append(mp.stages, fragmentStage)

	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         modelUniformBinding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		},
		{
			Binding:         modelSamplerBinding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
	err = lockPool.SafeCall(DescriptorManagement, func() error {
		var layout vk.DescriptorSetLayout
		res := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}, context.Allocator, &layout)
		if res != vk.Success {
			return vulkanError("vkCreateDescriptorSetLayout", res)
		}
		mp.descriptorSetLayout = layout
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}

	limits := context.Device.Properties.Limits
	limits.Deref()
	mp.uniformStride = uniformStride(uint64(mp.config.UniformSize), uint64(limits.MinUniformBufferOffsetAlignment))

	mp.frames = make([]modelFrame, mp.config.ChainLength)
	for i := range mp.frames {
		if err := mp.createFrame(&mp.frames[i]); err != nil {
			return err
		}
	}

	width := float32(context.FramebufferWidth)
	height := float32(context.FramebufferHeight)
	pipeline, err := NewGraphicsPipeline(context, &VulkanPipelineConfig{
		Renderpass:           context.MainRenderpass,
		VertexLayout:         mp.config.VertexLayout,
		DescriptorSetLayouts: []vk.DescriptorSetLayout{mp.descriptorSetLayout},
		Stages: []vk.PipelineShaderStageCreateInfo{
			vertexStage.ShaderStageCreateInfo,
			fragmentStage.ShaderStageCreateInfo,
		},
		Viewport: vk.Viewport{
			Y:        height,
			Width:    width,
			Height:   -height,
			MaxDepth: 1.0,
		},
		Scissor: vk.Rect2D{
			Extent: vk.Extent2D{Width: context.FramebufferWidth, Height: context.FramebufferHeight},
		},
		CullMode:    mp.config.CullMode,
		IsWireframe: mp.config.Wireframe,
		DepthTest:   mp.config.DepthTest,
		DepthWrite:  mp.config.DepthWrite,
	})
	if err != nil {
		return fmt.Errorf("pipeline `%s`: %w", mp.config.Name, err)
	}
	mp.pipeline = pipeline
	return nil
}

func (mp *ModelPipeline) createFrame(frame *modelFrame) error {
	context := mp.renderer.context

	buffer, err := newVulkanBuffer(context,
		mp.uniformStride*uint64(mp.config.MaxDraws),
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		err = fmt.Errorf("%w: uniform buffer for `%s`: %w", core.ErrBufferCreate, mp.config.Name, err)
		core.LogError(err.Error())
		return err
	}
	frame.uniformBuffer = buffer
	if err := buffer.mapPersistent(context); err != nil {
		core.LogError(err.Error())
		return err
	}

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: mp.config.MaxDraws},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: mp.config.MaxDraws},
	}
	return lockPool.SafeCall(DescriptorManagement, func() error {
		var pool vk.DescriptorPool
		res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &vk.DescriptorPoolCreateInfo{
			SType:         vk.StructureTypeDescriptorPoolCreateInfo,
			MaxSets:       mp.config.MaxDraws,
			PoolSizeCount: uint32(len(poolSizes)),
			PPoolSizes:    poolSizes,
		}, context.Allocator, &pool)
		if res != vk.Success {
			err := vulkanError("vkCreateDescriptorPool", res)
			core.LogError(err.Error())
			return err
		}
		frame.descriptorPool = pool
		return nil
	})
}

/**
 * @brief Queues one draw for the current frame. indexBuffer may be nil,
 * in which case the vertices are drawn in order. texture must already
 * be uploaded.
 */
func (mp *ModelPipeline) QueueRender(vertexBuffer *metadata.RenderBuffer, vertexCount uint32, indexBuffer *metadata.RenderBuffer, uniformData []byte, texture *metadata.Texture) error {
	if vertexCount == 0 {
		return fmt.Errorf("pipeline `%s`: draw with no vertices", mp.config.Name)
	}
	if len(uniformData) == 0 || uint32(len(uniformData)) > mp.config.UniformSize {
		return fmt.Errorf("pipeline `%s`: uniform block of %d bytes, expected at most %d", mp.config.Name, len(uniformData), mp.config.UniformSize)
	}
	vb, err := internalBuffer(vertexBuffer)
	if err != nil {
		return err
	}
	vt, err := internalTexture(texture)
	if err != nil {
		return err
	}

	call := drawCall{
		vertexBuffer: vb,
		vertexCount:  vertexCount,
		uniformData:  append([]byte(nil), uniformData...),
		texture:      vt,
	}
	if indexBuffer != nil {
		ib, err := internalBuffer(indexBuffer)
		if err != nil {
			return err
		}
		call.indexBuffer = ib
		call.indexCount = uint32(indexBuffer.TotalSize / uint64(mp.config.IndexType.Size()))
	}

	if err := mp.queue.Enqueue(call); err != nil {
		return fmt.Errorf("pipeline `%s`: %w", mp.config.Name, err)
	}
	return nil
}

// submit records every queued draw into commandBuffer using the resources of frame.
func (mp *ModelPipeline) submit(commandBuffer *VulkanCommandBuffer, frame uint32) error {
	if mp.queue.IsEmpty() {
		return nil
	}
	context := mp.renderer.context
	device := context.Device.LogicalDevice
	resources := &mp.frames[frame%uint32(len(mp.frames))]

	if res := vk.ResetDescriptorPool(device, resources.descriptorPool, 0); res != vk.Success {
		mp.queue.Clear()
		return vulkanError("vkResetDescriptorPool", res)
	}

	mp.pipeline.Bind(commandBuffer, vk.PipelineBindPointGraphics)

	for i := uint64(0); !mp.queue.IsEmpty(); i++ {
		call, err := mp.queue.Dequeue()
		if err != nil {
			return err
		}
		offset := i * mp.uniformStride
		if err := resources.uniformBuffer.loadData(context, offset, call.uniformData); err != nil {
			mp.queue.Clear()
			return err
		}

		var set vk.DescriptorSet
		res := vk.AllocateDescriptorSets(device, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     resources.descriptorPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{mp.descriptorSetLayout},
		}, &set)
		if res != vk.Success {
			mp.queue.Clear()
			return vulkanError("vkAllocateDescriptorSets", res)
		}

		writes := []vk.WriteDescriptorSet{
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      modelUniformBinding,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeUniformBuffer,
				PBufferInfo: []vk.DescriptorBufferInfo{{
					Buffer: resources.uniformBuffer.Handle,
					Offset: vk.DeviceSize(offset),
					Range:  vk.DeviceSize(mp.config.UniformSize),
				}},
			},
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      modelSamplerBinding,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
				PImageInfo: []vk.DescriptorImageInfo{{
					ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
					ImageView:   call.texture.Image.View,
					Sampler:     call.texture.Sampler,
				}},
			},
		}
		vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)

		vk.CmdBindDescriptorSets(commandBuffer.Handle, vk.PipelineBindPointGraphics, mp.pipeline.PipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
		vk.CmdBindVertexBuffers(commandBuffer.Handle, 0, 1, []vk.Buffer{call.vertexBuffer.Handle}, []vk.DeviceSize{0})

		if call.indexBuffer != nil && call.indexCount > 0 {
			vk.CmdBindIndexBuffer(commandBuffer.Handle, call.indexBuffer.Handle, 0, indexType(mp.config.IndexType))
			vk.CmdDrawIndexed(commandBuffer.Handle, call.indexCount, 1, 0, 0, 0)
		} else {
			vk.CmdDraw(commandBuffer.Handle, call.vertexCount, 1, 0, 0)
		}
	}
	return nil
}

// discard drops the queued draws of a frame that will not be recorded.
func (mp *ModelPipeline) discard() {
	mp.queue.Clear()
}

func (mp *ModelPipeline) Destroy() {
	vk.DeviceWaitIdle(mp.renderer.context.Device.LogicalDevice)
	mp.renderer.removePipeline(mp)
	mp.release()
}

func (mp *ModelPipeline) release() {
	context := mp.renderer.context
	device := context.Device.LogicalDevice

	if mp.pipeline != nil {
		mp.pipeline.Destroy(context)
		mp.pipeline = nil
	}
	for i := range mp.frames {
		frame := &mp.frames[i]
		if frame.uniformBuffer != nil {
			frame.uniformBuffer.destroy(context)
			frame.uniformBuffer = nil
		}
		if frame.descriptorPool != nil {
			vk.DestroyDescriptorPool(device, frame.descriptorPool, context.Allocator)
			frame.descriptorPool = nil
		}
	}
	mp.frames = nil
	if mp.descriptorSetLayout != nil {
		vk.DestroyDescriptorSetLayout(device, mp.descriptorSetLayout, context.Allocator)
		mp.descriptorSetLayout = nil
	}
	for _, stage := range mp.stages {
		stage.Destroy(context)
	}
	mp.stages = nil
	mp.queue.Clear()
}
