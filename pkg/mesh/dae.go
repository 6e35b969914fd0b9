package mesh

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/go-gl/mathgl/mgl64"
)

// colladaDoc is the subset of a COLLADA document the loader needs:
// geometry sources, their index lists, and the authored unit.
type colladaDoc struct {
	XMLName xml.Name `xml:"COLLADA"`
	Asset   struct {
		Unit struct {
			Meter string `xml:"meter,attr"`
		} `xml:"unit"`
	} `xml:"asset"`
	Geometries []colladaGeometry `xml:"library_geometries>geometry"`
}

type colladaGeometry struct {
	ID   string      `xml:"id,attr"`
	Name string      `xml:"name,attr"`
	Mesh colladaMesh `xml:"mesh"`
}

type colladaMesh struct {
	Sources   []colladaSource    `xml:"source"`
	Vertices  colladaVertices    `xml:"vertices"`
	Triangles []colladaTriangles `xml:"triangles"`
	Polylists []colladaPolylist  `xml:"polylist"`
}

type colladaSource struct {
	ID         string `xml:"id,attr"`
	FloatArray string `xml:"float_array"`
}

type colladaVertices struct {
	ID     string         `xml:"id,attr"`
	Inputs []colladaInput `xml:"input"`
}

type colladaInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
}

type colladaTriangles struct {
	Inputs []colladaInput `xml:"input"`
	P      string         `xml:"p"`
}

type colladaPolylist struct {
	Inputs []colladaInput `xml:"input"`
	VCount string         `xml:"vcount"`
	P      string         `xml:"p"`
}

// ParseDAE parses COLLADA geometry. All geometries in the document are
// merged into one mesh and positions are converted to meters using the
// authored <unit> scale.
func ParseDAE(data []byte) (*Mesh, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var doc colladaDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing COLLADA: %w", err)
	}

	meter := 1.0
	if doc.Asset.Unit.Meter != "" {
		if v, err := strconv.ParseFloat(doc.Asset.Unit.Meter, 64); err == nil && v > 0 {
			meter = v
		}
	}

	m := &Mesh{}
	for _, geo := range doc.Geometries {
		if m.Name == "" {
			if geo.Name != "" {
				m.Name = geo.Name
			} else {
				m.Name = geo.ID
			}
		}
		appendColladaMesh(m, &geo.Mesh)
	}
	if meter != 1.0 {
		m.ApplyScale(meter)
	}
	return m, nil
}

func appendColladaMesh(m *Mesh, cm *colladaMesh) {
	sources := map[string][]float64{}
	for _, s := range cm.Sources {
		sources[s.ID] = parseFloats(s.FloatArray)
	}

	// The vertices element indirects POSITION to its backing source.
	positions := []float64{}
	for _, in := range cm.Vertices.Inputs {
		if in.Semantic == "POSITION" {
			positions = sources[strings.TrimPrefix(in.Source, "#")]
		}
	}
	if len(positions) == 0 {
		return
	}

	emit := func(idx int) {
		base := idx * 3
		if base < 0 || base+3 > len(positions) {
			return
		}
		m.Positions = append(m.Positions, mgl64.Vec3{positions[base], positions[base+1], positions[base+2]})
	}

	for _, tri := range cm.Triangles {
		offset, stride, ok := vertexLayout(tri.Inputs, cm.Vertices.ID)
		if !ok {
			continue
		}
		idx := parseInts(tri.P)
		for k := offset; k < len(idx); k += stride {
			emit(idx[k])
		}
	}
	for _, pl := range cm.Polylists {
		offset, stride, ok := vertexLayout(pl.Inputs, cm.Vertices.ID)
		if !ok {
			continue
		}
		idx := parseInts(pl.P)
		counts := parseInts(pl.VCount)
		pos := 0
		for _, c := range counts {
			if pos+c*stride > len(idx) {
				break
			}
			// Fan triangulation over the polygon's vertex indices.
			for i := 1; i < c-1; i++ {
				emit(idx[pos+offset])
				emit(idx[pos+i*stride+offset])
				emit(idx[pos+(i+1)*stride+offset])
			}
			pos += c * stride
		}
	}
}

// vertexLayout finds the VERTEX input's offset and the combined index
// stride for a triangles or polylist element.
func vertexLayout(inputs []colladaInput, verticesID string) (offset, stride int, ok bool) {
	stride = 1
	for _, in := range inputs {
		if in.Offset+1 > stride {
			stride = in.Offset + 1
		}
		if in.Semantic == "VERTEX" && strings.TrimPrefix(in.Source, "#") == verticesID {
			offset = in.Offset
			ok = true
		}
	}
	if !ok && len(inputs) == 0 {
		// Some exporters omit inputs on single-source meshes.
		return 0, 1, true
	}
	return offset, stride, ok
}

func parseFloats(s string) []float64 {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func parseInts(s string) []int {
	fields := strings.Fields(s)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
