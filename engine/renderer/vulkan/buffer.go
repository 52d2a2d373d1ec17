package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

/** @brief Vulkan handles stored in RenderBuffer.InternalData. */
type VulkanBuffer struct {
	Handle      vk.Buffer
	Memory      vk.DeviceMemory
	Usage       vk.BufferUsageFlags
	MemoryFlags vk.MemoryPropertyFlags
	// Set while the memory is persistently mapped.
	mapped unsafe.Pointer
}

func bufferUsage(bufferType metadata.RenderBufferType) (vk.BufferUsageFlags, error) {
	switch bufferType {
	case metadata.RENDERBUFFER_TYPE_VERTEX:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit), nil
	case metadata.RENDERBUFFER_TYPE_INDEX:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit), nil
	case metadata.RENDERBUFFER_TYPE_UNIFORM:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit | vk.BufferUsageTransferDstBit), nil
	case metadata.RENDERBUFFER_TYPE_STAGING:
		return vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), nil
	default:
		return 0, fmt.Errorf("unsupported buffer type %s", bufferType)
	}
}

func memoryFlags(flags metadata.MemoryPropertyFlags) vk.MemoryPropertyFlags {
	var out vk.MemoryPropertyFlagBits
	if flags.Has(metadata.MemoryPropertyDeviceLocal) {
		out |= vk.MemoryPropertyDeviceLocalBit
	}
	if flags.Has(metadata.MemoryPropertyHostVisible) {
		out |= vk.MemoryPropertyHostVisibleBit
	}
	if flags.Has(metadata.MemoryPropertyHostCoherent) {
		out |= vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyFlags(out)
}

func newVulkanBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, flags vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		Usage:       usage,
		MemoryFlags: flags,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	err := lockPool.SafeCall(BufferManagement, func() error {
		var handle vk.Buffer
		if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
			return vulkanError("vkCreateBuffer", res)
		}
		buffer.Handle = handle

		var requirements vk.MemoryRequirements
		vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &requirements)
		requirements.Deref()

		memoryType, err := context.FindMemoryIndex(requirements.MemoryTypeBits, flags)
		if err != nil {
			return err
		}

		allocateInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  requirements.Size,
			MemoryTypeIndex: memoryType,
		}
		var memory vk.DeviceMemory
		if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
			return vulkanError("vkAllocateMemory", res)
		}
		buffer.Memory = memory

		if res := vk.BindBufferMemory(context.Device.LogicalDevice, buffer.Handle, buffer.Memory, 0); res != vk.Success {
			return vulkanError("vkBindBufferMemory", res)
		}
		return nil
	})
	if err != nil {
		buffer.destroy(context)
		return nil, err
	}
	return buffer, nil
}

func (b *VulkanBuffer) destroy(context *VulkanContext) {
	_ = lockPool.SafeCall(BufferManagement, func() error {
		if b.mapped != nil {
			vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
			b.mapped = nil
		}
		if b.Memory != vk.NullDeviceMemory {
			vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
			b.Memory = vk.NullDeviceMemory
		}
		if b.Handle != vk.NullBuffer {
			vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
			b.Handle = vk.NullBuffer
		}
		return nil
	})
}

// loadData maps the range, copies data and unmaps it again unless the
// buffer is persistently mapped.
func (b *VulkanBuffer) loadData(context *VulkanContext, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if b.mapped != nil {
		vk.Memcopy(unsafe.Add(b.mapped, offset), data)
		return nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		return vulkanError("vkMapMemory", res)
	}
	n := vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	if n != len(data) {
		return fmt.Errorf("copied %d of %d bytes into buffer", n, len(data))
	}
	return nil
}

// mapPersistent keeps the whole buffer mapped until it is destroyed.
func (b *VulkanBuffer) mapPersistent(context *VulkanContext) error {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(vk.WholeSize), 0, &ptr); res != vk.Success {
		return vulkanError("vkMapMemory", res)
	}
	b.mapped = ptr
	return nil
}

func internalBuffer(buffer *metadata.RenderBuffer) (*VulkanBuffer, error) {
	if buffer == nil {
		return nil, fmt.Errorf("nil render buffer")
	}
	vb, ok := buffer.InternalData.(*VulkanBuffer)
	if !ok || vb == nil {
		return nil, fmt.Errorf("%s buffer has no Vulkan backing", buffer.RenderBufferType)
	}
	return vb, nil
}

func (vr *VulkanRenderer) RenderBufferCreate(bufferType metadata.RenderBufferType, totalSize uint64, memory metadata.MemoryPropertyFlags) (*metadata.RenderBuffer, error) {
	if totalSize == 0 {
		err := fmt.Errorf("%w: %s buffer of size 0", core.ErrBufferCreate, bufferType)
		core.LogError(err.Error())
		return nil, err
	}
	usage, err := bufferUsage(bufferType)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	vb, err := newVulkanBuffer(vr.context, totalSize, usage, memoryFlags(memory))
	if err != nil {
		err = fmt.Errorf("%w: %s buffer of %d bytes: %w", core.ErrBufferCreate, bufferType, totalSize, err)
		core.LogError(err.Error())
		return nil, err
	}
	return &metadata.RenderBuffer{
		RenderBufferType: bufferType,
		TotalSize:        totalSize,
		MemoryProperties: memory,
		InternalData:     vb,
	}, nil
}

func (vr *VulkanRenderer) RenderBufferDestroy(buffer *metadata.RenderBuffer) {
	vb, err := internalBuffer(buffer)
	if err != nil {
		return
	}
	// frames still in flight may read the buffer
	if err := vr.WaitIdle(); err != nil {
		core.LogWarn("destroying buffer without an idle device: %s", err.Error())
	}
	vb.destroy(vr.context)
	buffer.InternalData = nil
	buffer.TotalSize = 0
}

func (vr *VulkanRenderer) RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	vb, err := internalBuffer(buffer)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	if !buffer.MemoryProperties.Has(metadata.MemoryPropertyHostVisible) {
		err := fmt.Errorf("cannot load into %s buffer: memory is not host visible", buffer.RenderBufferType)
		core.LogError(err.Error())
		return err
	}
	if offset+uint64(len(data)) > buffer.TotalSize {
		err := fmt.Errorf("load of %d bytes at offset %d overflows %s buffer of %d bytes", len(data), offset, buffer.RenderBufferType, buffer.TotalSize)
		core.LogError(err.Error())
		return err
	}
	if err := vb.loadData(vr.context, offset, data); err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (vr *VulkanRenderer) RenderBufferCopyRange(source *metadata.RenderBuffer, sourceOffset uint64, dest *metadata.RenderBuffer, destOffset uint64, size uint64) error {
	src, err := internalBuffer(source)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	dst, err := internalBuffer(dest)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	if sourceOffset+size > source.TotalSize || destOffset+size > dest.TotalSize {
		err := fmt.Errorf("copy of %d bytes is out of range", size)
		core.LogError(err.Error())
		return err
	}

	return SingleUse(vr.context, func(cmd vk.CommandBuffer) {
		region := vk.BufferCopy{
			SrcOffset: vk.DeviceSize(sourceOffset),
			DstOffset: vk.DeviceSize(destOffset),
			Size:      vk.DeviceSize(size),
		}
		vk.CmdCopyBuffer(cmd, src.Handle, dst.Handle, 1, []vk.BufferCopy{region})
	})
}
