package assets

import (
	"bytes"
	"image"
	"path"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
)

// ImageInfo is the probe result for a texture asset.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// ProbeImage reads just enough of a texture to report its format and
// pixel dimensions. PNG, JPEG, and BMP are sniffed by magic; TGA has no
// usable magic prefix so it is tried by extension last.
func ProbeImage(name string, data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
	}

	if strings.EqualFold(path.Ext(name), ".tga") {
		cfg, tgaErr := tga.DecodeConfig(bytes.NewReader(data))
		if tgaErr != nil {
			return ImageInfo{}, tgaErr
		}
		return ImageInfo{Format: "tga", Width: cfg.Width, Height: cfg.Height}, nil
	}
	return ImageInfo{}, err
}

// IsImagePath reports whether the path looks like a texture asset.
func IsImagePath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tga":
		return true
	}
	return false
}

// IsMeshPath reports whether the path looks like mesh geometry.
func IsMeshPath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".stl", ".obj", ".dae", ".gltf", ".glb":
		return true
	}
	return false
}
