package renderer

import "github.com/spaghettifunk/anima3d/engine/renderer/metadata"

type RendererType uint8

const (
	Vulkan RendererType = iota
)

/** @brief GPU buffer primitives: create, fill through a mapping, copy, destroy. */
type BufferBackend interface {
	RenderBufferCreate(bufferType metadata.RenderBufferType, totalSize uint64, memory metadata.MemoryPropertyFlags) (*metadata.RenderBuffer, error)
	RenderBufferDestroy(buffer *metadata.RenderBuffer)
	// RenderBufferLoadRange maps the host-visible buffer, copies data in and unmaps it.
	RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error
	// RenderBufferCopyRange records a device-side copy and waits for it to complete.
	RenderBufferCopyRange(source *metadata.RenderBuffer, sourceOffset uint64, dest *metadata.RenderBuffer, destOffset uint64, size uint64) error
}

type TextureBackend interface {
	TextureCreate(pixels []uint8, texture *metadata.Texture) error
	TextureDestroy(texture *metadata.Texture)
}

type PipelineBackend interface {
	// ChainLength is the number of frames that may be in flight at once.
	ChainLength() uint32
	PipelineCreate(config *metadata.PipelineConfig) (Pipeline, error)
}

/**
 * @brief A graphics pipeline accepting queued draws. Queued draws are
 * recorded into the frame's command buffer by the backend at the end of
 * the frame and the queue is then emptied.
 */
type Pipeline interface {
	QueueRender(vertexBuffer *metadata.RenderBuffer, vertexCount uint32, indexBuffer *metadata.RenderBuffer, uniformData []byte, texture *metadata.Texture) error
	Destroy()
}

type RendererBackend interface {
	BufferBackend
	TextureBackend
	PipelineBackend
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	Resized(width, height uint32) error
	// WaitIdle blocks until no submitted frame is still executing on the GPU.
	WaitIdle() error
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error
}
