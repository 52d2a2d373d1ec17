package metadata

import (
	"encoding/binary"

	"github.com/spaghettifunk/anima3d/engine/math"
)

/** @brief One triangle, as three indices into the owning vertex list. */
type Face struct {
	Verts [3]uint16
}

/**
 * @brief Parsed geometry ready for upload. Vertices are already unrolled
 * per face corner, so every Face indexes directly into Vertices.
 */
type GeometryData struct {
	Name     string
	Vertices []math.Vertex3D
	Faces    []Face
	Extents  math.Extents3D
}

func (g *GeometryData) VertexCount() uint32 {
	if g == nil {
		return 0
	}
	return uint32(len(g.Vertices))
}

func (g *GeometryData) FaceCount() uint32 {
	if g == nil {
		return 0
	}
	return uint32(len(g.Faces))
}

// VertexBytes returns the vertex list in its GPU memory layout.
func (g *GeometryData) VertexBytes() []byte {
	if g == nil || len(g.Vertices) == 0 {
		return nil
	}
	out, _ := binary.Append(make([]byte, 0, binary.Size(g.Vertices)), binary.LittleEndian, g.Vertices)
	return out
}

// FaceBytes returns the index list as packed uint16 triples.
func (g *GeometryData) FaceBytes() []byte {
	if g == nil || len(g.Faces) == 0 {
		return nil
	}
	out, _ := binary.Append(make([]byte, 0, binary.Size(g.Faces)), binary.LittleEndian, g.Faces)
	return out
}
