package mesh

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// ParseOBJ parses Wavefront OBJ geometry. Faces are fan-triangulated
// and emitted as a triangle soup; texture coordinates and materials are
// ignored.
func ParseOBJ(data []byte) (*Mesh, error) {
	// Index 0 is a dummy so 1-based OBJ indices map directly.
	vs := []mgl64.Vec3{{}}
	vns := []mgl64.Vec3{{}}

	m := &Mesh{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "o", "g":
			if len(fields) > 1 && m.Name == "" {
				m.Name = fields[1]
			}
		case "v":
			if len(fields) >= 4 {
				vs = append(vs, mgl64.Vec3{pf(fields[1]), pf(fields[2]), pf(fields[3])})
			}
		case "vn":
			if len(fields) >= 4 {
				vns = append(vns, mgl64.Vec3{pf(fields[1]), pf(fields[2]), pf(fields[3])})
			}
		case "f":
			fvs, fvns := parseFace(fields[1:])
			for i := 1; i < len(fvs)-1; i++ {
				for _, k := range []int{0, i, i + 1} {
					m.Positions = append(m.Positions, vs[fixIndex(fvs[k], len(vs))])
					if len(vns) > 1 {
						m.Normals = append(m.Normals, vns[fixIndex(fvns[k], len(vns))])
					}
				}
			}
		}
	}
	return m, scanner.Err()
}

// fixIndex maps OBJ's 1-based, possibly negative indices onto the
// current slice length.
func fixIndex(i, n int) int {
	if i > 0 && i < n {
		return i
	}
	if i < 0 && n+i > 0 {
		return n + i
	}
	return 0
}

// parseFace splits face vertex references of the forms v, v/vt, v//vn
// and v/vt/vn.
func parseFace(args []string) ([]int, []int) {
	vi := make([]int, len(args))
	vn := make([]int, len(args))
	for i, s := range args {
		parts := strings.Split(s, "/")
		vi[i], _ = strconv.Atoi(parts[0])
		if len(parts) > 2 && parts[2] != "" {
			vn[i], _ = strconv.Atoi(parts[2])
		}
	}
	return vi, vn
}
