package metadata

import (
	"unsafe"

	"github.com/spaghettifunk/anima3d/engine/math"
)

type VertexFormat int

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
	VertexFormatFloat32x4
)

type VertexInputRate int

const (
	VertexInputRateVertex VertexInputRate = iota
	VertexInputRateInstance
)

type VertexBindingDescription struct {
	Binding   uint32
	Stride    uint32
	InputRate VertexInputRate
}

type VertexAttributeDescription struct {
	Location uint32
	Binding  uint32
	Format   VertexFormat
	Offset   uint32
}

/** @brief Describes how a vertex buffer is read by a pipeline. */
type VertexLayout struct {
	Binding    VertexBindingDescription
	Attributes []VertexAttributeDescription
}

type IndexType int

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

// Size returns the width of one index in bytes.
func (t IndexType) Size() uint32 {
	if t == IndexTypeUint32 {
		return 4
	}
	return 2
}

/**
 * @brief Builds the layout of math.Vertex3D: binding 0 and three
 * attributes (position, normal, texcoord) at locations 0, 1 and 2.
 */
func NewVertex3DLayout() VertexLayout {
	v := math.Vertex3D{}
	return VertexLayout{
		Binding: VertexBindingDescription{
			Binding:   0,
			Stride:    uint32(unsafe.Sizeof(v)),
			InputRate: VertexInputRateVertex,
		},
		Attributes: []VertexAttributeDescription{
			{Location: 0, Binding: 0, Format: VertexFormatFloat32x3, Offset: uint32(unsafe.Offsetof(v.Position))},
			{Location: 1, Binding: 0, Format: VertexFormatFloat32x3, Offset: uint32(unsafe.Offsetof(v.Normal))},
			{Location: 2, Binding: 0, Format: VertexFormatFloat32x2, Offset: uint32(unsafe.Offsetof(v.Texcoord))},
		},
	}
}
