package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/math"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

// maxUnrolledVertices is the largest vertex list a uint16 index can address.
const maxUnrolledVertices = 1 << 16

// ObjLoader reads Wavefront OBJ files into metadata.GeometryData.
type ObjLoader struct{}

func (ol *ObjLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	geometry, err := ParseObj(f, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &metadata.Resource{
		Name:     name,
		FullPath: path,
		DataSize: uint64(len(geometry.Vertices)) * uint64(metadata.NewVertex3DLayout().Binding.Stride),
		Data:     geometry,
	}, nil
}

func (ol *ObjLoader) Unload(*metadata.Resource) error {
	return nil
}

type objCorner struct {
	v, vt, vn int
}

type objDecoder struct {
	line      int
	positions []math.Vec3
	normals   []math.Vec3
	texels    []math.Vec2
	corners   []objCorner
}

/**
 * @brief Parses OBJ text. Faces are triangulated as fans and unrolled so
 * each triangle corner becomes its own vertex; Faces then index that
 * unrolled list. A file with vertices but no faces yields the raw
 * positions and zero faces.
 */
func ParseObj(r io.Reader, name string) (*metadata.GeometryData, error) {
	dec := &objDecoder{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		dec.line++
		if err := dec.parseLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrParseFailed, err)
	}
	return dec.build(name)
}

func (dec *objDecoder) formatError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", core.ErrParseFailed, dec.line, fmt.Sprintf(format, args...))
}

func (dec *objDecoder) parseLine(line string) error {
	line = strings.TrimSpace(line)
	if len(line) == 0 || line[0] == '#' {
		return nil
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "v":
		v, err := dec.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.positions = append(dec.positions, math.NewVec3(v[0], v[1], v[2]))
	case "vn":
		v, err := dec.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		dec.normals = append(dec.normals, math.NewVec3(v[0], v[1], v[2]))
	case "vt":
		v, err := dec.parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		dec.texels = append(dec.texels, math.NewVec2(v[0], v[1]))
	case "f":
		return dec.parseFace(fields[1:])
	}
	// o, g, s, usemtl, mtllib and friends carry nothing the mesh pipeline uses.
	return nil
}

func (dec *objDecoder) parseFloats(fields []string, count int) ([]float32, error) {
	if len(fields) < count {
		return nil, dec.formatError("expected %d values, got %d", count, len(fields))
	}
	out := make([]float32, count)
	for i := 0; i < count; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, dec.formatError("invalid number `%s`", fields[i])
		}
		out[i] = float32(f)
	}
	return out, nil
}

// resolveIndex turns a 1-based (or negative, relative) OBJ index into a 0-based one.
func (dec *objDecoder) resolveIndex(field string, count int) (int, error) {
	val, err := strconv.Atoi(field)
	if err != nil {
		return 0, dec.formatError("invalid index `%s`", field)
	}
	idx := val - 1
	if val < 0 {
		idx = count + val
	} else if val == 0 {
		return 0, dec.formatError("index value equal to 0")
	}
	if idx < 0 || idx >= count {
		return 0, dec.formatError("index %d out of range (%d defined)", val, count)
	}
	return idx, nil
}

func (dec *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return dec.formatError("face line with less than 3 vertices")
	}
	corners := make([]objCorner, len(fields))
	for pos, f := range fields {
		parts := strings.Split(f, "/")
		c := objCorner{v: -1, vt: -1, vn: -1}

		idx, err := dec.resolveIndex(parts[0], len(dec.positions))
		if err != nil {
			return err
		}
		c.v = idx

		if len(parts) > 1 && len(parts[1]) > 0 {
			if c.vt, err = dec.resolveIndex(parts[1], len(dec.texels)); err != nil {
				return err
			}
		}
		if len(parts) > 2 && len(parts[2]) > 0 {
			if c.vn, err = dec.resolveIndex(parts[2], len(dec.normals)); err != nil {
				return err
			}
		}
		corners[pos] = c
	}
	// fan triangulation
	for i := 1; i+1 < len(corners); i++ {
		dec.corners = append(dec.corners, corners[0], corners[i], corners[i+1])
	}
	return nil
}

func (dec *objDecoder) build(name string) (*metadata.GeometryData, error) {
	if len(dec.positions) == 0 {
		return nil, fmt.Errorf("%w: no vertices defined", core.ErrParseFailed)
	}
	g := &metadata.GeometryData{Name: name}

	if len(dec.corners) == 0 {
		g.Vertices = make([]math.Vertex3D, len(dec.positions))
		for i, p := range dec.positions {
			g.Vertices[i].Position = p
		}
		g.Extents = computeExtents(g.Vertices)
		return g, nil
	}

	if len(dec.corners) > maxUnrolledVertices {
		return nil, fmt.Errorf("%w: %d face vertices exceed the 16-bit index range", core.ErrParseFailed, len(dec.corners))
	}

	g.Vertices = make([]math.Vertex3D, len(dec.corners))
	for i, c := range dec.corners {
		v := math.Vertex3D{Position: dec.positions[c.v]}
		if c.vn >= 0 {
			v.Normal = dec.normals[c.vn]
		}
		if c.vt >= 0 {
			v.Texcoord = dec.texels[c.vt]
		}
		g.Vertices[i] = v
	}
	g.Faces = make([]metadata.Face, len(dec.corners)/3)
	for i := range g.Faces {
		base := uint16(i * 3)
		g.Faces[i] = metadata.Face{Verts: [3]uint16{base, base + 1, base + 2}}
	}
	g.Extents = computeExtents(g.Vertices)
	return g, nil
}

func computeExtents(vertices []math.Vertex3D) math.Extents3D {
	ext := math.Extents3D{Min: vertices[0].Position, Max: vertices[0].Position}
	for _, v := range vertices[1:] {
		p := v.Position
		ext.Min = math.NewVec3(min(ext.Min.X, p.X), min(ext.Min.Y, p.Y), min(ext.Min.Z, p.Z))
		ext.Max = math.NewVec3(max(ext.Max.X, p.X), max(ext.Max.Y, p.Y), max(ext.Max.Z, p.Z))
	}
	return ext
}
