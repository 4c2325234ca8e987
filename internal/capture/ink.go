package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// InkPalette is the tri-color palette of black/red e-paper panels.
var InkPalette = color.Palette{
	color.White,
	color.Black,
	color.RGBA{R: 0xFF, A: 0xFF},
}

const (
	inkWhite uint8 = iota
	inkBlack
	inkRed
)

// Reduce maps every pixel of img onto InkPalette. Transparent pixels are
// white.
func Reduce(img image.Image) *image.Paletted {
	b := img.Bounds()
	src, ok := img.(*image.NRGBA)
	if !ok {
		src = image.NewNRGBA(b)
		draw.Draw(src, b, img, b.Min, draw.Src)
	}

	out := image.NewPaletted(b, InkPalette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[(y-b.Min.Y)*src.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			i := (x - b.Min.X) * 4
			c := color.NRGBA{R: row[i], G: row[i+1], B: row[i+2], A: row[i+3]}
			out.SetColorIndex(x, y, classifyPixel(c))
		}
	}
	return out
}

// classifyPixel:
//
//   - luma Y = 0.299R + 0.587G + 0.114B
//   - redness = R - max(G, B)
//   - Y < 64 → black
//   - R > 128 and redness > 32 → red
//   - otherwise white
func classifyPixel(c color.NRGBA) uint8 {
	if c.A < 128 {
		return inkWhite
	}
	r, g, b := float64(c.R), float64(c.G), float64(c.B)

	y := 0.299*r + 0.587*g + 0.114*b

	maxGB := max(g, b)
	redness := r - maxGB

	if y < 64 {
		return inkBlack
	}
	if r > 128 && redness > 32 {
		return inkRed
	}
	return inkWhite
}

// InkPNG decodes a PNG, reduces it to InkPalette and re-encodes it.
func InkPNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("capture: decode png: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Reduce(img)); err != nil {
		return nil, fmt.Errorf("capture: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
