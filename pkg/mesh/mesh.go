// Package mesh decodes the triangle-mesh formats robot descriptions
// reference (STL, OBJ, COLLADA, glTF/GLB) into a minimal geometry
// representation: enough for bounding boxes and uniform rescaling, not a
// full scene graph.
package mesh

import (
	"encoding/binary"
	"errors"
	"math"
	"path"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Decode errors.
var (
	ErrUnknownFormat = errors.New("unrecognized mesh format")
)

// FetchFunc resolves an external buffer URI referenced by a glTF
// document into its raw bytes.
type FetchFunc func(uri string) ([]byte, error)

// Mesh is decoded triangle geometry. Indices may be empty, in which case
// Positions is a raw triangle soup.
type Mesh struct {
	Name      string
	Positions []mgl64.Vec3
	Normals   []mgl64.Vec3
	Indices   []uint32
}

// Empty reports whether the mesh has no geometry.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Positions) == 0
}

// Bounds returns the axis-aligned bounding box over all positions. An
// empty mesh yields zero bounds.
func (m *Mesh) Bounds() (min, max mgl64.Vec3) {
	if m.Empty() {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	min = mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	max = mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, p := range m.Positions {
		for i := 0; i < 3; i++ {
			if p[i] < min[i] {
				min[i] = p[i]
			}
			if p[i] > max[i] {
				max[i] = p[i]
			}
		}
	}
	return min, max
}

// MaxDimension returns the largest extent of the bounding box, the
// figure unit auto-detection samples.
func (m *Mesh) MaxDimension() float64 {
	min, max := m.Bounds()
	d := max.Sub(min)
	out := d.X()
	if d.Y() > out {
		out = d.Y()
	}
	if d.Z() > out {
		out = d.Z()
	}
	return out
}

// ApplyScale scales every position uniformly in place.
func (m *Mesh) ApplyScale(s float64) {
	for i := range m.Positions {
		m.Positions[i] = m.Positions[i].Mul(s)
	}
}

// Decode parses mesh data, picking the format from the file extension
// and falling back to content sniffing. fetch may be nil when the data
// cannot reference external buffers.
func Decode(name string, data []byte, fetch FetchFunc) (*Mesh, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".stl":
		return ParseSTL(data)
	case ".obj":
		return ParseOBJ(data)
	case ".dae":
		return ParseDAE(data)
	case ".gltf":
		return ParseGLTF(data, fetch)
	case ".glb":
		return ParseGLB(data, fetch)
	}
	return sniff(data, fetch)
}

func sniff(data []byte, fetch FetchFunc) (*Mesh, error) {
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == glbMagic {
		return ParseGLB(data, fetch)
	}
	trimmed := strings.TrimLeft(string(data[:minInt(len(data), 512)]), " \t\r\n")
	switch {
	case strings.HasPrefix(trimmed, "solid") && strings.Contains(string(data), "facet"):
		return ParseSTL(data)
	case strings.HasPrefix(trimmed, "<"):
		return ParseDAE(data)
	case strings.HasPrefix(trimmed, "{"):
		return ParseGLTF(data, fetch)
	case strings.HasPrefix(trimmed, "v ") || strings.Contains(trimmed, "\nv "):
		return ParseOBJ(data)
	}
	if isBinarySTL(data) {
		return ParseSTL(data)
	}
	return nil, ErrUnknownFormat
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
