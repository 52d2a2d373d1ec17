package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

func (ms *MeshSystem) buildVertexBuffer(primitive *metadata.MeshPrimitive) error {
	if primitive == nil {
		return nil
	}
	data := primitive.Geometry.VertexBytes()
	if len(data) == 0 {
		return errors.New("geometry has no vertices")
	}
	buffer, err := ms.uploadBuffer(metadata.RENDERBUFFER_TYPE_VERTEX, data)
	if err != nil {
		return err
	}
	primitive.VertexBuffer = buffer
	primitive.VertexCount = primitive.Geometry.VertexCount()
	return nil
}

// buildFaceBuffer is a no-op for geometry without faces.
func (ms *MeshSystem) buildFaceBuffer(primitive *metadata.MeshPrimitive) error {
	if primitive == nil || primitive.Geometry.FaceCount() == 0 {
		return nil
	}
	buffer, err := ms.uploadBuffer(metadata.RENDERBUFFER_TYPE_INDEX, primitive.Geometry.FaceBytes())
	if err != nil {
		return err
	}
	primitive.FaceBuffer = buffer
	primitive.FaceCount = primitive.Geometry.FaceCount()
	return nil
}

/**
 * @brief Copies data into a new device-local buffer through a temporary
 * host-visible staging buffer. The staging buffer is always destroyed.
 */
func (ms *MeshSystem) uploadBuffer(bufferType metadata.RenderBufferType, data []byte) (*metadata.RenderBuffer, error) {
	size := uint64(len(data))

	staging, err := ms.backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_STAGING, size, metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, fmt.Errorf("%w: staging for %s data: %v", core.ErrBufferCreate, bufferType, err)
	}
	defer ms.backend.RenderBufferDestroy(staging)

	if err := ms.backend.RenderBufferLoadRange(staging, 0, data); err != nil {
		return nil, err
	}

	buffer, err := ms.backend.RenderBufferCreate(bufferType, size, metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, fmt.Errorf("%w: %s buffer: %v", core.ErrBufferCreate, bufferType, err)
	}
	if err := ms.backend.RenderBufferCopyRange(staging, 0, buffer, 0, size); err != nil {
		ms.backend.RenderBufferDestroy(buffer)
		return nil, err
	}
	return buffer, nil
}

/**
 * @brief Destroys the GPU buffers of primitive and drops its geometry.
 * Safe to call with nil or on an already freed primitive.
 */
func (ms *MeshSystem) FreePrimitive(primitive *metadata.MeshPrimitive) {
	if primitive == nil {
		return
	}
	if primitive.VertexBuffer != nil {
		ms.backend.RenderBufferDestroy(primitive.VertexBuffer)
		primitive.VertexBuffer = nil
	}
	if primitive.FaceBuffer != nil {
		ms.backend.RenderBufferDestroy(primitive.FaceBuffer)
		primitive.FaceBuffer = nil
	}
	primitive.Geometry = nil
	primitive.VertexCount = 0
	primitive.FaceCount = 0
}
