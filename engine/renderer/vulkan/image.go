package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima3d/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
}

/**
 * @brief Creates a 2D image with bound memory and, when createView is set,
 * a view covering viewAspect.
 */
func ImageCreate(
	context *VulkanContext,
	imageType vk.ImageType,
	width, height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspect vk.ImageAspectFlags,
) (*VulkanImage, error) {
	image := &VulkanImage{
		Width:  width,
		Height: height,
		Format: format,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	err := lockPool.SafeCall(ImageManagement, func() error {
		var handle vk.Image
		if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
			return vulkanError("vkCreateImage", res)
		}
		image.Handle = handle

		var requirements vk.MemoryRequirements
		vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image.Handle, &requirements)
		requirements.Deref()

		memoryType, err := context.FindMemoryIndex(requirements.MemoryTypeBits, memoryFlags)
		if err != nil {
			return fmt.Errorf("required memory type not found, image not valid: %w", err)
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
		image.Memory = memory

		if res := vk.BindImageMemory(context.Device.LogicalDevice, image.Handle, image.Memory, 0); res != vk.Success {
			return vulkanError("vkBindImageMemory", res)
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		image.Destroy(context)
		return nil, err
	}

	if createView {
		if err := image.createView(context, format, viewAspect); err != nil {
			image.Destroy(context)
			return nil, err
		}
	}
	return image, nil
}

func (vi *VulkanImage) createView(context *VulkanContext, format vk.Format, aspect vk.ImageAspectFlags) error {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		err := vulkanError("vkCreateImageView", res)
		core.LogError(err.Error())
		return err
	}
	vi.View = view
	return nil
}

// TransitionLayout records a barrier moving the image between the layouts
// used by texture uploads.
func (vi *VulkanImage) TransitionLayout(context *VulkanContext, cmd vk.CommandBuffer, oldLayout, newLayout vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		DstQueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var source, destination vk.PipelineStageFlags
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		source = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		destination = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		source = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		destination = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		err := fmt.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
		core.LogError(err.Error())
		return err
	}

	vk.CmdPipelineBarrier(cmd, source, destination, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

func (vi *VulkanImage) CopyFromBuffer(cmd vk.CommandBuffer, buffer vk.Buffer) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  vi.Width,
			Height: vi.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(cmd, buffer, vi.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (vi *VulkanImage) Destroy(context *VulkanContext) {
	if vi == nil {
		return
	}
	_ = lockPool.SafeCall(ImageManagement, func() error {
		if vi.View != vk.NullImageView {
			vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
			vi.View = vk.NullImageView
		}
		if vi.Memory != vk.NullDeviceMemory {
			vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
			vi.Memory = vk.NullDeviceMemory
		}
		if vi.Handle != vk.NullImage {
			vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
			vi.Handle = vk.NullImage
		}
		return nil
	})
}
