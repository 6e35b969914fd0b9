package assets

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestProbeImageFormats(t *testing.T) {
	pngBuf := &bytes.Buffer{}
	if err := png.Encode(pngBuf, testImage(3, 2)); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	jpgBuf := &bytes.Buffer{}
	if err := jpeg.Encode(jpgBuf, testImage(4, 5), nil); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	bmpBuf := &bytes.Buffer{}
	if err := bmp.Encode(bmpBuf, testImage(6, 7)); err != nil {
		t.Fatalf("encoding bmp: %v", err)
	}

	tests := []struct {
		name       string
		file       string
		data       []byte
		wantFormat string
		wantW      int
		wantH      int
	}{
		{"png", "skin.png", pngBuf.Bytes(), "png", 3, 2},
		{"jpeg", "skin.jpg", jpgBuf.Bytes(), "jpeg", 4, 5},
		{"bmp", "skin.bmp", bmpBuf.Bytes(), "bmp", 6, 7},
		{"tga", "skin.tga", makeTGA(t, 8, 9), "tga", 8, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ProbeImage(tt.file, tt.data)
			if err != nil {
				t.Fatalf("ProbeImage: %v", err)
			}
			if info.Format != tt.wantFormat {
				t.Fatalf("format = %q, want %q", info.Format, tt.wantFormat)
			}
			if info.Width != tt.wantW || info.Height != tt.wantH {
				t.Fatalf("size = %dx%d, want %dx%d", info.Width, info.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

// makeTGA writes an 18-byte uncompressed true-color TGA header plus BGR
// pixel data.
func makeTGA(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	// No image id, no color map, image type 2 (uncompressed true-color).
	buf.Write([]byte{0, 0, 2})
	// Color map spec and origin, all zero.
	buf.Write(make([]byte, 9))
	binary.Write(buf, binary.LittleEndian, uint16(w))
	binary.Write(buf, binary.LittleEndian, uint16(h))
	// 24 bits per pixel, default descriptor.
	buf.Write([]byte{24, 0})
	buf.Write(make([]byte, w*h*3))
	return buf.Bytes()
}

func TestProbeImageGarbage(t *testing.T) {
	if _, err := ProbeImage("noise.png", []byte{1, 2, 3}); err == nil {
		t.Fatal("garbage should fail to probe")
	}
}

func TestPathClassifiers(t *testing.T) {
	for _, p := range []string{"a/b.stl", "c.OBJ", "x.dae", "y.gltf", "z.glb"} {
		if !IsMeshPath(p) {
			t.Errorf("IsMeshPath(%q) = false", p)
		}
	}
	for _, p := range []string{"a/b.png", "c.JPG", "d.jpeg", "e.bmp", "f.tga"} {
		if !IsImagePath(p) {
			t.Errorf("IsImagePath(%q) = false", p)
		}
	}
	if IsMeshPath("readme.txt") || IsImagePath("readme.txt") {
		t.Error("txt classified as asset")
	}
}
