package mesh

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// glTF parse errors.
var (
	ErrInvalidGLBMagic        = errors.New("invalid GLB magic: expected 'glTF'")
	ErrUnsupportedGLTFVersion = errors.New("unsupported glTF version: must be 2.x")
	ErrMissingJSONChunk       = errors.New("GLB container missing JSON chunk")
	ErrMissingGLTFBuffer      = errors.New("glTF buffer has no URI and no binary chunk")
	ErrInvalidGLTFBufferURI   = errors.New("invalid glTF buffer URI")
	ErrShortGLTFBuffer        = errors.New("glTF accessor exceeds buffer bounds")
)

const (
	glbMagic     = 0x46546C67
	glbChunkJSON = 0x4E4F534A
	glbChunkBIN  = 0x004E4942
)

// glTF component types.
const (
	componentUByte  = 5121
	componentUShort = 5123
	componentUInt   = 5125
	componentFloat  = 5126
)

type gltfDoc struct {
	Asset struct {
		Version string `json:"version"`
	} `json:"asset"`
	Buffers     []gltfBuffer     `json:"buffers"`
	BufferViews []gltfBufferView `json:"bufferViews"`
	Accessors   []gltfAccessor   `json:"accessors"`
	Meshes      []gltfMesh       `json:"meshes"`
}

type gltfBuffer struct {
	URI        string `json:"uri"`
	ByteLength int    `json:"byteLength"`

	data []byte
}

type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	ByteStride int `json:"byteStride"`
}

type gltfAccessor struct {
	BufferView    int    `json:"bufferView"`
	ByteOffset    int    `json:"byteOffset"`
	ComponentType int    `json:"componentType"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
}

type gltfMesh struct {
	Name       string          `json:"name"`
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices"`
}

// ParseGLTF parses a glTF 2.0 JSON document. External buffers are
// resolved through fetch; embedded base64 data URIs need no fetcher.
func ParseGLTF(data []byte, fetch FetchFunc) (*Mesh, error) {
	var doc gltfDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return nil, ErrUnsupportedGLTFVersion
	}
	if err := loadGLTFBuffers(&doc, fetch, nil); err != nil {
		return nil, err
	}
	return buildGLTFMesh(&doc)
}

// ParseGLB parses the binary glTF container: a 12-byte header followed
// by length-prefixed JSON and BIN chunks.
func ParseGLB(data []byte, fetch FetchFunc) (*Mesh, error) {
	if len(data) < 12 {
		return nil, ErrInvalidGLBMagic
	}
	r := bytes.NewReader(data)

	var header struct {
		Magic   uint32
		Version uint32
		Length  uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Magic != glbMagic {
		return nil, ErrInvalidGLBMagic
	}

	var jsonChunk, binChunk []byte
	for {
		var ch struct {
			Length uint32
			Type   uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		chunk := make([]byte, ch.Length)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("reading GLB chunk: %w", err)
		}
		switch ch.Type {
		case glbChunkJSON:
			jsonChunk = chunk
		case glbChunkBIN:
			binChunk = chunk
		}
	}
	if jsonChunk == nil {
		return nil, ErrMissingJSONChunk
	}

	var doc gltfDoc
	if err := json.Unmarshal(jsonChunk, &doc); err != nil {
		return nil, fmt.Errorf("parsing GLB JSON chunk: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return nil, ErrUnsupportedGLTFVersion
	}
	if err := loadGLTFBuffers(&doc, fetch, binChunk); err != nil {
		return nil, err
	}
	return buildGLTFMesh(&doc)
}

// loadGLTFBuffers fills every buffer's backing bytes from the GLB binary
// chunk, an embedded data URI, or the fetch callback, in that order of
// applicability.
func loadGLTFBuffers(doc *gltfDoc, fetch FetchFunc, binChunk []byte) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "":
			if i != 0 || binChunk == nil {
				return fmt.Errorf("buffer %d: %w", i, ErrMissingGLTFBuffer)
			}
			buf.data = binChunk
		case strings.HasPrefix(buf.URI, "data:"):
			comma := strings.Index(buf.URI, ",")
			if comma < 0 || !strings.Contains(buf.URI[:comma], "base64") {
				return fmt.Errorf("buffer %d: %w", i, ErrInvalidGLTFBufferURI)
			}
			data, err := base64.StdEncoding.DecodeString(buf.URI[comma+1:])
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.data = data
		default:
			if fetch == nil {
				return fmt.Errorf("buffer %d (%q): %w", i, buf.URI, ErrMissingGLTFBuffer)
			}
			data, err := fetch(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d (%q): %w", i, buf.URI, err)
			}
			buf.data = data
		}
	}
	return nil
}

func buildGLTFMesh(doc *gltfDoc) (*Mesh, error) {
	m := &Mesh{}
	for _, gm := range doc.Meshes {
		if m.Name == "" {
			m.Name = gm.Name
		}
		for _, prim := range gm.Primitives {
			posIdx, ok := prim.Attributes["POSITION"]
			if !ok {
				continue
			}
			base := uint32(len(m.Positions))
			positions, err := doc.readVec3(posIdx)
			if err != nil {
				return nil, err
			}
			m.Positions = append(m.Positions, positions...)

			if prim.Indices != nil {
				idx, err := doc.readIndices(*prim.Indices)
				if err != nil {
					return nil, err
				}
				for _, v := range idx {
					m.Indices = append(m.Indices, base+v)
				}
			} else {
				for i := range positions {
					m.Indices = append(m.Indices, base+uint32(i))
				}
			}
		}
	}
	return m, nil
}

// view returns the byte window an accessor reads through, plus the
// element stride to step with.
func (doc *gltfDoc) view(acc *gltfAccessor, elemSize int) ([]byte, int, error) {
	if acc.BufferView < 0 || acc.BufferView >= len(doc.BufferViews) {
		return nil, 0, ErrShortGLTFBuffer
	}
	bv := doc.BufferViews[acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return nil, 0, ErrShortGLTFBuffer
	}
	data := doc.Buffers[bv.Buffer].data
	start := bv.ByteOffset + acc.ByteOffset
	end := bv.ByteOffset + bv.ByteLength
	if start > len(data) || end > len(data) || start > end {
		return nil, 0, ErrShortGLTFBuffer
	}
	stride := bv.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	return data[start:end], stride, nil
}

func (doc *gltfDoc) readVec3(accessor int) ([]mgl64.Vec3, error) {
	if accessor < 0 || accessor >= len(doc.Accessors) {
		return nil, ErrShortGLTFBuffer
	}
	acc := doc.Accessors[accessor]
	if acc.Type != "VEC3" || acc.ComponentType != componentFloat {
		return nil, fmt.Errorf("accessor %d: want VEC3 float, got %s/%d", accessor, acc.Type, acc.ComponentType)
	}
	data, stride, err := doc.view(&acc, 12)
	if err != nil {
		return nil, err
	}
	out := make([]mgl64.Vec3, 0, acc.Count)
	for i := 0; i < acc.Count; i++ {
		off := i * stride
		if off+12 > len(data) {
			return nil, ErrShortGLTFBuffer
		}
		out = append(out, mgl64.Vec3{
			float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))),
			float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))),
			float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:]))),
		})
	}
	return out, nil
}

func (doc *gltfDoc) readIndices(accessor int) ([]uint32, error) {
	if accessor < 0 || accessor >= len(doc.Accessors) {
		return nil, ErrShortGLTFBuffer
	}
	acc := doc.Accessors[accessor]
	if acc.Type != "SCALAR" {
		return nil, fmt.Errorf("accessor %d: want SCALAR indices, got %s", accessor, acc.Type)
	}
	var size int
	switch acc.ComponentType {
	case componentUByte:
		size = 1
	case componentUShort:
		size = 2
	case componentUInt:
		size = 4
	default:
		return nil, fmt.Errorf("accessor %d: unsupported index component type %d", accessor, acc.ComponentType)
	}
	data, stride, err := doc.view(&acc, size)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, acc.Count)
	for i := 0; i < acc.Count; i++ {
		off := i * stride
		if off+size > len(data) {
			return nil, ErrShortGLTFBuffer
		}
		switch acc.ComponentType {
		case componentUByte:
			out = append(out, uint32(data[off]))
		case componentUShort:
			out = append(out, uint32(binary.LittleEndian.Uint16(data[off:])))
		case componentUInt:
			out = append(out, binary.LittleEndian.Uint32(data[off:]))
		}
	}
	return out, nil
}
