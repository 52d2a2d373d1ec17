package metadata

import (
	"encoding/binary"
	"testing"

	"github.com/spaghettifunk/anima3d/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertex3DLayout(t *testing.T) {
	layout := NewVertex3DLayout()
	assert.Equal(t, uint32(0), layout.Binding.Binding)
	assert.Equal(t, uint32(32), layout.Binding.Stride)
	require.Len(t, layout.Attributes, 3)

	assert.Equal(t, VertexAttributeDescription{Location: 0, Binding: 0, Format: VertexFormatFloat32x3, Offset: 0}, layout.Attributes[0])
	assert.Equal(t, VertexAttributeDescription{Location: 1, Binding: 0, Format: VertexFormatFloat32x3, Offset: 12}, layout.Attributes[1])
	assert.Equal(t, VertexAttributeDescription{Location: 2, Binding: 0, Format: VertexFormatFloat32x2, Offset: 24}, layout.Attributes[2])
}

func TestGeometryBytesMatchGPULayout(t *testing.T) {
	g := &GeometryData{
		Vertices: []math.Vertex3D{
			{Position: math.NewVec3(1, 2, 3), Texcoord: math.NewVec2(0.5, 1)},
			{Position: math.NewVec3(4, 5, 6)},
			{Position: math.NewVec3(7, 8, 9)},
		},
		Faces: []Face{{Verts: [3]uint16{0, 1, 2}}},
	}
	vb := g.VertexBytes()
	assert.Len(t, vb, 3*32)
	assert.Equal(t, uint32(0x40000000), binary.LittleEndian.Uint32(vb[4:8])) // 2.0f

	fb := g.FaceBytes()
	assert.Equal(t, []byte{0, 0, 1, 0, 2, 0}, fb)
	assert.Equal(t, uint32(3), g.VertexCount())
	assert.Equal(t, uint32(1), g.FaceCount())
}

func TestGeometryWithoutFaces(t *testing.T) {
	var nilGeometry *GeometryData
	assert.Nil(t, nilGeometry.FaceBytes())
	assert.Equal(t, uint32(0), nilGeometry.VertexCount())

	g := &GeometryData{Vertices: []math.Vertex3D{{}}}
	assert.Nil(t, g.FaceBytes())
	assert.Equal(t, uint32(0), g.FaceCount())
}

func TestMeshUBOBytes(t *testing.T) {
	ubo := MeshUBO{
		Model: math.NewMat4Translation(math.NewVec3(1, 2, 3)),
		View:  math.NewMat4Identity(),
		Proj:  math.NewMat4Identity(),
		Color: math.ColorWhite.ToVec4(),
	}
	data := ubo.Bytes()
	assert.Len(t, data, int(MeshUBOSize))
	assert.Equal(t, uint32(208), MeshUBOSize)

	decoded, err := DecodeMeshUBO(data)
	require.NoError(t, err)
	assert.Equal(t, ubo, decoded)
}

func TestIndexTypeSize(t *testing.T) {
	assert.Equal(t, uint32(2), IndexTypeUint16.Size())
	assert.Equal(t, uint32(4), IndexTypeUint32.Size())
}

func TestGetAligned(t *testing.T) {
	assert.Equal(t, uint64(256), GetAligned(208, 256))
	assert.Equal(t, uint64(512), GetAligned(257, 256))
	r := GetAlignedRange(10, 20, 16)
	assert.Equal(t, uint64(16), r.Offset)
	assert.Equal(t, uint64(32), r.Size)
}

func TestCullModeUnmarshal(t *testing.T) {
	var c CullMode
	require.NoError(t, c.UnmarshalText([]byte("Back")))
	assert.Equal(t, CullModeBack, c)
	assert.Error(t, c.UnmarshalText([]byte("sideways")))
}
