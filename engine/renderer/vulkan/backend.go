package vulkan

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima3d/engine/core"
	amath "github.com/spaghettifunk/anima3d/engine/math"
	"github.com/spaghettifunk/anima3d/engine/platform"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

type VulkanRenderer struct {
	platform                *platform.Platform
	FrameNumber             uint64
	context                 *VulkanContext
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	// live pipelines, recorded at the end of every frame
	pipelines []*ModelPipeline

	debug bool
}

func New(p *platform.Platform, debug bool) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		context:  &VulkanContext{},
		debug:    debug,
	}
}

// requiredInstanceExtensions merges the platform's surface extensions with
// the ones needed on goos, without duplicates.
func requiredInstanceExtensions(platformExtensions []string, goos string, debug bool) []string {
	extensions := []string{"VK_KHR_surface"}
	add := func(names ...string) {
		for _, name := range names {
			if !slices.Contains(extensions, name) {
				extensions = append(extensions, name)
			}
		}
	}
	add(platformExtensions...)
	if goos == "darwin" {
		add("VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
	}
	if debug {
		add(vk.ExtDebugReportExtensionName)
	}
	return extensions
}

// frameViewport flips the Y axis so clip space points up.
func frameViewport(width, height uint32) vk.Viewport {
	return vk.Viewport{
		X:        0.0,
		Y:        float32(height),
		Width:    float32(width),
		Height:   -float32(height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	vr.context.Allocator = nil
	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.Window.CreateWindowSurface(vr.context.Instance, nil)
	if err != nil {
		err = fmt.Errorf("vulkan surface creation failed: %w", err)
		core.LogError(err.Error())
		return err
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}

	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height

	rp, err := RenderpassCreate(
		vr.context,
		amath.NewVec4(0, 0, float32(vr.context.FramebufferWidth), float32(vr.context.FramebufferHeight)),
		amath.NewVec4(0.0, 0.0, 0.2, 1.0),
		1.0,
		0)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	if err := vr.createSyncObjects(); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Anima3D Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}
	if runtime.GOOS == "darwin" {
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= vk.InstanceCreateFlags(1)
	}

	extensions := requiredInstanceExtensions(vr.platform.GetRequiredExtensionNames(), runtime.GOOS, vr.debug)
	core.LogDebug("Required extensions: %v", extensions)
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)

	layers := []string{}
	if vr.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		if err := checkValidationLayers([]string{validationLayerName}); err != nil {
			core.LogError(err.Error())
			return err
		}
		layers = append(layers, validationLayerName)
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &instance); res != vk.Success {
		err := vulkanError("vkCreateInstance", res)
		core.LogError(err.Error())
		return err
	}
	vr.context.Instance = instance
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkValidationLayers(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return vulkanError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return vulkanError("vkEnumerateInstanceLayerProperties", res)
	}

	names := make([]string, 0, len(available))
	for i := range available {
		available[i].Deref()
		name := available[i].LayerName[:]
		names = append(names, string(name[:FindFirstZeroInByteArray(name)]))
	}
	for _, layer := range required {
		core.LogDebug("Searching for layer: %s...", layer)
		if !slices.Contains(names, layer) {
			return fmt.Errorf("required validation layer is missing: %s", layer)
		}
	}
	return nil
}

func (vr *VulkanRenderer) createSyncObjects() error {
	framesInFlight := vr.context.Swapchain.MaxFramesInFlight
	vr.context.ImageAvailableSemaphores = make([]vk.Semaphore, framesInFlight)
	vr.context.QueueCompleteSemaphores = make([]vk.Semaphore, framesInFlight)
	vr.context.InFlightFences = make([]*VulkanFence, framesInFlight)

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := uint32(0); i < framesInFlight; i++ {
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.ImageAvailableSemaphores[i]); res != vk.Success {
			err := vulkanError("vkCreateSemaphore", res)
			core.LogError(err.Error())
			return err
		}
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.QueueCompleteSemaphores[i]); res != vk.Success {
			err := vulkanError("vkCreateSemaphore", res)
			core.LogError(err.Error())
			return err
		}

		// Signaled, so the first frame does not wait on a frame that never ran.
		f, err := NewFence(vr.context, true)
		if err != nil {
			return err
		}
		vr.context.InFlightFences[i] = f
	}

	// Borrowed from InFlightFences; nil while an image is unused.
	vr.context.ImagesInFlight = make([]*VulkanFence, vr.context.Swapchain.ImageCount)
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	if vr.context.Instance == nil {
		return nil
	}
	device := vr.context.Device
	if device != nil && device.LogicalDevice != nil {
		vk.DeviceWaitIdle(device.LogicalDevice)

		for _, p := range slices.Clone(vr.pipelines) {
			core.LogWarn("pipeline `%s` still alive at shutdown, destroying", p.config.Name)
			p.Destroy()
		}

		for i := range vr.context.ImageAvailableSemaphores {
			if vr.context.ImageAvailableSemaphores[i] != vk.NullSemaphore {
				vk.DestroySemaphore(device.LogicalDevice, vr.context.ImageAvailableSemaphores[i], vr.context.Allocator)
				vr.context.ImageAvailableSemaphores[i] = vk.NullSemaphore
			}
		}
		for i := range vr.context.QueueCompleteSemaphores {
			if vr.context.QueueCompleteSemaphores[i] != vk.NullSemaphore {
				vk.DestroySemaphore(device.LogicalDevice, vr.context.QueueCompleteSemaphores[i], vr.context.Allocator)
				vr.context.QueueCompleteSemaphores[i] = vk.NullSemaphore
			}
		}
		for _, fence := range vr.context.InFlightFences {
			if fence != nil {
				fence.Destroy(vr.context)
			}
		}
		vr.context.ImageAvailableSemaphores = nil
		vr.context.QueueCompleteSemaphores = nil
		vr.context.InFlightFences = nil
		vr.context.ImagesInFlight = nil

		vr.freeCommandBuffers()
		vr.destroyFramebuffers()

		vr.context.MainRenderpass.Destroy(vr.context)
		vr.context.MainRenderpass = nil

		if vr.context.Swapchain != nil {
			vr.context.Swapchain.Destroy(vr.context)
			vr.context.Swapchain = nil
		}

		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(vr.context)
	}

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	vr.context.Instance = nil
	return nil
}

func (vr *VulkanRenderer) Resized(width, height uint32) error {
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
	return nil
}

// WaitIdle blocks until the GPU has finished every submitted frame.
func (vr *VulkanRenderer) WaitIdle() error {
	device := vr.context.Device
	if device == nil || device.LogicalDevice == nil {
		return nil
	}
	if res := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(res) {
		err := vulkanError("vkDeviceWaitIdle", res)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (vr *VulkanRenderer) ChainLength() uint32 {
	if vr.context.Swapchain == nil {
		return maxFramesInFlight
	}
	return vr.context.Swapchain.MaxFramesInFlight
}

func (vr *VulkanRenderer) removePipeline(p *ModelPipeline) {
	vr.pipelines = slices.DeleteFunc(vr.pipelines, func(candidate *ModelPipeline) bool {
		return candidate == p
	})
}

func (vr *VulkanRenderer) discardQueuedDraws() {
	for _, p := range vr.pipelines {
		p.discard()
	}
}

/**
 * @brief Waits for the current frame's fence, acquires the next image and
 * begins recording the main renderpass. Returns core.ErrSwapchainBooting
 * when the frame must be skipped; queued draws are dropped in that case.
 */
func (vr *VulkanRenderer) BeginFrame(deltaTime float64) error {
	if vr.context.RecreatingSwapchain {
		if err := vr.WaitIdle(); err != nil {
			return err
		}
		core.LogInfo("Recreating swapchain, booting.")
		vr.discardQueuedDraws()
		return core.ErrSwapchainBooting
	}

	if vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		if err := vr.WaitIdle(); err != nil {
			return err
		}
		vr.discardQueuedDraws()
		if err := vr.recreateSwapchain(); err != nil && !errors.Is(err, core.ErrSwapchainBooting) {
			return err
		}
		core.LogInfo("Resized, booting.")
		return core.ErrSwapchainBooting
	}

	if !vr.context.InFlightFences[vr.context.CurrentFrame].Wait(vr.context, math.MaxUint64) {
		err := fmt.Errorf("in-flight fence wait failure")
		core.LogWarn(err.Error())
		return err
	}

	imageIndex, err := vr.context.Swapchain.AcquireNextImageIndex(
		vr.context,
		math.MaxUint64,
		vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame],
		vk.NullFence)
	if err != nil {
		vr.discardQueuedDraws()
		return err
	}
	vr.context.ImageIndex = imageIndex

	commandBuffer := vr.context.GraphicsCommandBuffers[vr.context.ImageIndex]
	commandBuffer.Reset()
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return err
	}

	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{
			Width:  vr.context.FramebufferWidth,
			Height: vr.context.FramebufferHeight,
		},
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{frameViewport(vr.context.FramebufferWidth, vr.context.FramebufferHeight)})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	vr.context.MainRenderpass.RenderArea.Z = float32(vr.context.FramebufferWidth)
	vr.context.MainRenderpass.RenderArea.W = float32(vr.context.FramebufferHeight)
	vr.context.MainRenderpass.Begin(commandBuffer, vr.context.Swapchain.Framebuffers[vr.context.ImageIndex].Handle)
	return nil
}

/**
 * @brief Records the queued draws of every pipeline, ends the renderpass,
 * submits the command buffer and presents the image.
 */
func (vr *VulkanRenderer) EndFrame(deltaTime float64) error {
	commandBuffer := vr.context.GraphicsCommandBuffers[vr.context.ImageIndex]

	for _, p := range vr.pipelines {
		if err := p.submit(commandBuffer, vr.context.CurrentFrame); err != nil {
			core.LogError("pipeline `%s` failed to record its draws: %s", p.config.Name, err.Error())
		}
	}

	vr.context.MainRenderpass.End(commandBuffer)
	if err := commandBuffer.End(); err != nil {
		return err
	}

	// Make sure the previous frame is not using this image.
	if fence := vr.context.ImagesInFlight[vr.context.ImageIndex]; fence != nil {
		fence.Wait(vr.context, math.MaxUint64)
	}
	vr.context.ImagesInFlight[vr.context.ImageIndex] = vr.context.InFlightFences[vr.context.CurrentFrame]

	if err := vr.context.InFlightFences[vr.context.CurrentFrame].Reset(vr.context); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame]},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame]},
		// One frame is presented at a time.
		PWaitDstStageMask: []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
	}

	fence := vr.context.InFlightFences[vr.context.CurrentFrame].Handle
	err := lockPool.SafeQueueCall(uint32(vr.context.Device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
			return vulkanError("vkQueueSubmit", res)
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	commandBuffer.UpdateSubmitted()

	if err := vr.context.Swapchain.Present(
		vr.context,
		vr.context.Device.PresentQueue,
		vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame],
		vr.context.ImageIndex); err != nil {
		return err
	}

	vr.FrameNumber++
	return nil
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	vr.freeCommandBuffers()
	vr.context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, vr.context.Swapchain.ImageCount)
	for i := range vr.context.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vr.context.GraphicsCommandBuffers[i] = cb
	}

	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (vr *VulkanRenderer) freeCommandBuffers() {
	for _, cb := range vr.context.GraphicsCommandBuffers {
		if cb != nil {
			cb.Free(vr.context, vr.context.Device.GraphicsCommandPool)
		}
	}
	vr.context.GraphicsCommandBuffers = nil
}

func (vr *VulkanRenderer) regenerateFramebuffers() error {
	swapchain := vr.context.Swapchain
	swapchain.Framebuffers = make([]*VulkanFramebuffer, swapchain.ImageCount)
	for i := range swapchain.Framebuffers {
		attachments := []vk.ImageView{
			swapchain.Views[i],
			swapchain.DepthAttachment.View,
		}
		fb, err := FramebufferCreate(vr.context, vr.context.MainRenderpass, vr.context.FramebufferWidth, vr.context.FramebufferHeight, attachments)
		if err != nil {
			return err
		}
		swapchain.Framebuffers[i] = fb
	}
	return nil
}

func (vr *VulkanRenderer) destroyFramebuffers() {
	if vr.context.Swapchain == nil {
		return
	}
	for _, fb := range vr.context.Swapchain.Framebuffers {
		fb.Destroy(vr.context)
	}
	vr.context.Swapchain.Framebuffers = nil
}

// recreateSwapchain rebuilds the swapchain and everything sized by it.
// Returns core.ErrSwapchainBooting when it cannot run yet.
func (vr *VulkanRenderer) recreateSwapchain() error {
	if vr.context.RecreatingSwapchain {
		core.LogDebug("recreateSwapchain called when already recreating. Booting.")
		return core.ErrSwapchainBooting
	}

	width, height := vr.context.FramebufferWidth, vr.context.FramebufferHeight
	if vr.cachedFramebufferWidth != 0 || vr.cachedFramebufferHeight != 0 {
		width, height = vr.cachedFramebufferWidth, vr.cachedFramebufferHeight
	}
	if width == 0 || height == 0 {
		core.LogDebug("recreateSwapchain called when window is < 1 in a dimension. Booting.")
		return core.ErrSwapchainBooting
	}

	vr.context.RecreatingSwapchain = true
	defer func() { vr.context.RecreatingSwapchain = false }()

	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	for i := range vr.context.ImagesInFlight {
		vr.context.ImagesInFlight[i] = nil
	}

	if err := DeviceQuerySwapchainSupport(vr.context.Device.PhysicalDevice, vr.context.Surface, vr.context.Device.SwapchainSupport); err != nil {
		return err
	}

	vr.destroyFramebuffers()
	sc, err := vr.context.Swapchain.Recreate(vr.context, width, height)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height
	vr.context.MainRenderpass.RenderArea = amath.NewVec4(0, 0, float32(sc.Extent.Width), float32(sc.Extent.Height))
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0

	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	vr.context.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
