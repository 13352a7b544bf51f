// Package dither converts source images into the bilevel pixel masks the
// tour engine consumes. Dark (ink) pixels become marked mask cells and later
// tour vertices.
package dither

import (
	"image"
	"image/color"
)

// Mask is a bilevel pixel grid. Marked cells are the pixels the drawing
// should pass through.
type Mask struct {
	Width  int
	Height int
	bits   []bool
}

// NewMask creates an all-unmarked mask of the given size.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		bits:   make([]bool, width*height),
	}
}

// At reports whether the pixel at (x, y) is marked.
func (m *Mask) At(x, y int) bool { return m.bits[y*m.Width+x] }

// Set marks or unmarks the pixel at (x, y).
func (m *Mask) Set(x, y int, marked bool) { m.bits[y*m.Width+x] = marked }

// Count returns the number of marked pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Grayscale converts an image to a row-major luminance matrix in [0, 255].
func Grayscale(img image.Image) [][]float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	pixels := make([][]float64, h)
	for y := 0; y < h; y++ {
		row := make([]float64, w)
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			row[x] = float64(g.Y)
		}
		pixels[y] = row
	}
	return pixels
}

// Downsample mean-pools ds x ds blocks of the luminance matrix, shrinking
// the image before dithering. ds <= 1 returns the input unchanged.
func Downsample(pixels [][]float64, ds int) [][]float64 {
	if ds <= 1 || len(pixels) == 0 {
		return pixels
	}
	h := len(pixels)
	w := len(pixels[0])

	out := make([][]float64, 0, (h+ds-1)/ds)
	for y := 0; y < h; y += ds {
		row := make([]float64, 0, (w+ds-1)/ds)
		for x := 0; x < w; x += ds {
			var sum float64
			var n int
			for dy := 0; dy < ds && y+dy < h; dy++ {
				for dx := 0; dx < ds && x+dx < w; dx++ {
					sum += pixels[y+dy][x+dx]
					n++
				}
			}
			row = append(row, sum/float64(n))
		}
		out = append(out, row)
	}
	return out
}

// FloydSteinberg dithers a luminance matrix to a bilevel mask by error
// diffusion with the classic 7/16, 3/16, 5/16, 1/16 kernel. Pixels that
// quantize to black are marked.
func FloydSteinberg(pixels [][]float64) *Mask {
	h := len(pixels)
	if h == 0 {
		return NewMask(0, 0)
	}
	w := len(pixels[0])

	// Work on a copy; diffusion mutates the values.
	buf := make([][]float64, h)
	for y := range pixels {
		buf[y] = append([]float64(nil), pixels[y]...)
	}

	mask := NewMask(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			old := buf[y][x]
			var quantized float64
			if old < 128 {
				quantized = 0
				mask.Set(x, y, true)
			} else {
				quantized = 255
			}
			err := old - quantized

			if x+1 < w {
				buf[y][x+1] += err * 7 / 16
			}
			if y+1 < h {
				if x > 0 {
					buf[y+1][x-1] += err * 3 / 16
				}
				buf[y+1][x] += err * 5 / 16
				if x+1 < w {
					buf[y+1][x+1] += err * 1 / 16
				}
			}
		}
	}
	return mask
}
