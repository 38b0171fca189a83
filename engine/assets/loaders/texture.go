package loaders

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/companion/engine/core"
)

// TextureData is a decoded texture ready for upload: 4 bytes per pixel, rows top to bottom.
type TextureData struct {
	Name          string
	Width         int
	Height        int
	Pixels        []uint8
	Premultiplied bool
}

type TextureLoader struct {
	// Premultiply selects premultiplied-alpha RGBA output instead of straight alpha.
	Premultiply bool
}

// Load decodes PNG, JPEG, BMP or WebP bytes into RGBA pixels.
func (tl *TextureLoader) Load(name string, data []byte) (*TextureData, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode texture %s: %w", name, err)
	}

	b := img.Bounds()
	var pixels []uint8
	if tl.Premultiply {
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		pixels = dst.Pix
	} else {
		dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		pixels = dst.Pix
	}
	core.LogDebug("decoded %s texture %s (%dx%d)", format, name, b.Dx(), b.Dy())

	return &TextureData{
		Name:          name,
		Width:         b.Dx(),
		Height:        b.Dy(),
		Pixels:        pixels,
		Premultiplied: tl.Premultiply,
	}, nil
}
