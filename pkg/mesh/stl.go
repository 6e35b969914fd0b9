package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// STL parse errors.
var (
	ErrTruncatedSTLData = errors.New("truncated STL data")
	ErrMalformedSTL     = errors.New("malformed STL data")
)

const stlTriangleSize = 50 // 12 floats plus the attribute byte count

// ParseSTL parses binary or ASCII STL. Binary headers that merely start
// with "solid" are told apart by the presence of facet keywords.
func ParseSTL(data []byte) (*Mesh, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("solid")) && bytes.Contains(data, []byte("facet")) {
		return parseASCIISTL(data)
	}
	return parseBinarySTL(data)
}

// isBinarySTL reports whether the byte count is consistent with the
// binary STL layout.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	count := binary.LittleEndian.Uint32(data[80:84])
	return len(data) == 84+int(count)*stlTriangleSize
}

func parseBinarySTL(data []byte) (*Mesh, error) {
	if len(data) < 84 {
		return nil, ErrTruncatedSTLData
	}
	r := bytes.NewReader(data[80:])

	var count uint32
	binary.Read(r, binary.LittleEndian, &count)
	if len(data) < 84+int(count)*stlTriangleSize {
		return nil, ErrTruncatedSTLData
	}

	m := &Mesh{
		Positions: make([]mgl64.Vec3, 0, count*3),
		Normals:   make([]mgl64.Vec3, 0, count*3),
	}
	var tri struct {
		Normal [3]float32
		Verts  [3][3]float32
		Attr   uint16
	}
	for i := uint32(0); i < count; i++ {
		if err := binary.Read(r, binary.LittleEndian, &tri); err != nil {
			return nil, ErrTruncatedSTLData
		}
		n := mgl64.Vec3{float64(tri.Normal[0]), float64(tri.Normal[1]), float64(tri.Normal[2])}
		for _, v := range tri.Verts {
			m.Positions = append(m.Positions, mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])})
			m.Normals = append(m.Normals, n)
		}
	}
	return m, nil
}

func parseASCIISTL(data []byte) (*Mesh, error) {
	m := &Mesh{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var normal mgl64.Vec3
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			if len(fields) > 1 && m.Name == "" {
				m.Name = fields[1]
			}
		case "facet":
			// "facet normal nx ny nz"
			if len(fields) >= 5 && fields[1] == "normal" {
				normal = mgl64.Vec3{pf(fields[2]), pf(fields[3]), pf(fields[4])}
			}
		case "vertex":
			if len(fields) < 4 {
				return nil, ErrMalformedSTL
			}
			m.Positions = append(m.Positions, mgl64.Vec3{pf(fields[1]), pf(fields[2]), pf(fields[3])})
			m.Normals = append(m.Normals, normal)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(m.Positions)%3 != 0 {
		return nil, ErrMalformedSTL
	}
	return m, nil
}

// pf parses a float, treating garbage as zero the way lenient mesh
// loaders do.
func pf(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
