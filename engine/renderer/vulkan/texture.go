package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

/** @brief Vulkan image and sampler stored in Texture.InternalData. */
type VulkanTexture struct {
	Image   *VulkanImage
	Sampler vk.Sampler
}

func (vr *VulkanRenderer) TextureCreate(pixels []uint8, texture *metadata.Texture) error {
	if texture == nil {
		return fmt.Errorf("nil texture")
	}
	size := uint64(texture.Width) * uint64(texture.Height) * uint64(texture.ChannelCount)
	if texture.ChannelCount != 4 || uint64(len(pixels)) != size || size == 0 {
		err := fmt.Errorf("texture `%s` expects %dx%d RGBA8 pixels, got %d bytes", texture.Name, texture.Width, texture.Height, len(pixels))
		core.LogError(err.Error())
		return err
	}

	staging, err := newVulkanBuffer(vr.context, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		err = fmt.Errorf("%w: staging for texture `%s`: %w", core.ErrBufferCreate, texture.Name, err)
		core.LogError(err.Error())
		return err
	}
	defer staging.destroy(vr.context)

	if err := staging.loadData(vr.context, 0, pixels); err != nil {
		core.LogError(err.Error())
		return err
	}

	image, err := ImageCreate(
		vr.context,
		vk.ImageType2d,
		texture.Width,
		texture.Height,
		vk.FormatR8g8b8a8Unorm,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit|vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return err
	}

	var recordErr error
	err = SingleUse(vr.context, func(cmd vk.CommandBuffer) {
		if recordErr = image.TransitionLayout(vr.context, cmd, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); recordErr != nil {
			return
		}
		image.CopyFromBuffer(cmd, staging.Handle)
		recordErr = image.TransitionLayout(vr.context, cmd, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err == nil {
		err = recordErr
	}
	if err != nil {
		image.Destroy(vr.context)
		return err
	}

	limits := vr.context.Device.Properties.Limits
	limits.Deref()

	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           clamp(16, 1, limits.MaxSamplerAnisotropy),
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(vr.context.Device.LogicalDevice, &samplerInfo, vr.context.Allocator, &sampler); res != vk.Success {
		image.Destroy(vr.context)
		err := vulkanError("vkCreateSampler", res)
		core.LogError(err.Error())
		return err
	}

	texture.InternalData = &VulkanTexture{Image: image, Sampler: sampler}
	texture.Generation++
	return nil
}

func (vr *VulkanRenderer) TextureDestroy(texture *metadata.Texture) {
	if texture == nil {
		return
	}
	vt, ok := texture.InternalData.(*VulkanTexture)
	if !ok || vt == nil {
		return
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	vt.Image.Destroy(vr.context)
	if vt.Sampler != nil {
		vk.DestroySampler(vr.context.Device.LogicalDevice, vt.Sampler, vr.context.Allocator)
		vt.Sampler = nil
	}
	texture.InternalData = nil
}

func internalTexture(texture *metadata.Texture) (*VulkanTexture, error) {
	if texture == nil {
		return nil, fmt.Errorf("nil texture")
	}
	vt, ok := texture.InternalData.(*VulkanTexture)
	if !ok || vt == nil {
		return nil, fmt.Errorf("texture `%s` has no Vulkan backing", texture.Name)
	}
	return vt, nil
}
