package metadata

import (
	"encoding/binary"

	"github.com/spaghettifunk/anima3d/engine/math"
)

/**
 * @brief One drawable chunk of a mesh: a device-local vertex buffer and an
 * optional face (index) buffer built from the same geometry.
 */
type MeshPrimitive struct {
	Geometry     *GeometryData
	VertexBuffer *RenderBuffer
	FaceBuffer   *RenderBuffer
	VertexCount  uint32
	FaceCount    uint32
}

/**
 * @brief A mesh lives in a fixed pool slot owned by the mesh system.
 * A ReferenceCount of zero means the slot is free.
 */
type Mesh struct {
	/** @brief Index of the pool slot holding this mesh. */
	ID uint32
	/** @brief Bumped every time the slot is handed out. */
	Generation     uint32
	Filename       string
	Primitives     []*MeshPrimitive
	ReferenceCount uint32
}

/** @brief Per-draw uniform block consumed by the model pipeline. */
type MeshUBO struct {
	Model math.Mat4
	View  math.Mat4
	Proj  math.Mat4
	Color math.Vec4
}

// MeshUBOSize is the byte size of MeshUBO as seen by shaders.
var MeshUBOSize = uint32(binary.Size(MeshUBO{}))

func (u *MeshUBO) Bytes() []byte {
	out, _ := binary.Append(make([]byte, 0, MeshUBOSize), binary.LittleEndian, u)
	return out
}

// DecodeMeshUBO reads back a uniform block produced by Bytes.
func DecodeMeshUBO(data []byte) (MeshUBO, error) {
	ubo := MeshUBO{}
	_, err := binary.Decode(data, binary.LittleEndian, &ubo)
	return ubo, err
}
