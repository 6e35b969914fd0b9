package mesh

import (
	"math"
	"testing"
)

func TestParseDAETriangles(t *testing.T) {
	src := `<?xml version="1.0" encoding="utf-8"?>
<COLLADA xmlns="http://www.collada.org/2005/11/COLLADASchema" version="1.4.1">
  <asset><unit meter="0.001" name="millimeter"/></asset>
  <library_geometries>
    <geometry id="plate-geo" name="plate">
      <mesh>
        <source id="plate-pos">
          <float_array id="plate-pos-array" count="9">0 0 0 1000 0 0 0 500 0</float_array>
        </source>
        <vertices id="plate-verts">
          <input semantic="POSITION" source="#plate-pos"/>
        </vertices>
        <triangles count="1">
          <input semantic="VERTEX" source="#plate-verts" offset="0"/>
          <p>0 1 2</p>
        </triangles>
      </mesh>
    </geometry>
  </library_geometries>
</COLLADA>`
	m, err := ParseDAE([]byte(src))
	if err != nil {
		t.Fatalf("ParseDAE: %v", err)
	}
	if m.Name != "plate" {
		t.Fatalf("name = %q, want plate", m.Name)
	}
	if len(m.Positions) != 3 {
		t.Fatalf("positions = %d, want 3", len(m.Positions))
	}
	// Millimeter unit scales into meters.
	if got := m.MaxDimension(); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("MaxDimension = %v, want 1.0", got)
	}
}

func TestParseDAEPolylistStride(t *testing.T) {
	src := `<COLLADA version="1.4.1">
  <library_geometries>
    <geometry id="quad-geo">
      <mesh>
        <source id="pos">
          <float_array count="12">0 0 0  2 0 0  2 2 0  0 2 0</float_array>
        </source>
        <source id="nrm">
          <float_array count="3">0 0 1</float_array>
        </source>
        <vertices id="verts">
          <input semantic="POSITION" source="#pos"/>
        </vertices>
        <polylist count="1">
          <input semantic="VERTEX" source="#verts" offset="0"/>
          <input semantic="NORMAL" source="#nrm" offset="1"/>
          <vcount>4</vcount>
          <p>0 0 1 0 2 0 3 0</p>
        </polylist>
      </mesh>
    </geometry>
  </library_geometries>
</COLLADA>`
	m, err := ParseDAE([]byte(src))
	if err != nil {
		t.Fatalf("ParseDAE: %v", err)
	}
	// Interleaved normal indices must be skipped and the quad fans into
	// two triangles.
	if len(m.Positions) != 6 {
		t.Fatalf("positions = %d, want 6", len(m.Positions))
	}
	if got := m.MaxDimension(); math.Abs(got-2) > 1e-9 {
		t.Fatalf("MaxDimension = %v, want 2", got)
	}
}

func TestParseDAEMalformed(t *testing.T) {
	if _, err := ParseDAE([]byte("<COLLADA><unterminated")); err == nil {
		t.Fatal("malformed document should fail")
	}
}
