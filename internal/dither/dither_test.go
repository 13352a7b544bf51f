package dither

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestMask_SetAtCount(t *testing.T) {
	m := NewMask(3, 2)

	if m.Count() != 0 {
		t.Fatalf("fresh mask Count() = %d, want 0", m.Count())
	}

	m.Set(2, 1, true)
	m.Set(0, 0, true)
	if !m.At(2, 1) || !m.At(0, 0) {
		t.Error("marked pixels not reported by At")
	}
	if m.At(1, 0) {
		t.Error("unmarked pixel reported as marked")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Set(2, 1, false)
	if m.Count() != 1 {
		t.Errorf("Count() after unmark = %d, want 1", m.Count())
	}
}

func TestGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.Black)
	img.Set(1, 0, color.White)

	pixels := Grayscale(img)

	if len(pixels) != 1 || len(pixels[0]) != 2 {
		t.Fatalf("Grayscale shape = %dx%d, want 1x2", len(pixels), len(pixels[0]))
	}
	if pixels[0][0] != 0 {
		t.Errorf("black pixel = %g, want 0", pixels[0][0])
	}
	if pixels[0][1] != 255 {
		t.Errorf("white pixel = %g, want 255", pixels[0][1])
	}
}

func TestGrayscale_NonZeroOrigin(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 7, 8, 9))
	img.Set(5, 7, color.Black)

	pixels := Grayscale(img)

	if len(pixels) != 2 || len(pixels[0]) != 3 {
		t.Fatalf("Grayscale shape = %dx%d, want 2x3", len(pixels), len(pixels[0]))
	}
	if pixels[0][0] != 0 {
		t.Errorf("origin pixel = %g, want 0", pixels[0][0])
	}
}

func TestDownsample_MeanPools(t *testing.T) {
	pixels := [][]float64{
		{0, 100, 200, 40},
		{50, 150, 0, 80},
	}

	out := Downsample(pixels, 2)

	if len(out) != 1 || len(out[0]) != 2 {
		t.Fatalf("Downsample shape = %dx%d, want 1x2", len(out), len(out[0]))
	}
	if out[0][0] != 75 {
		t.Errorf("out[0][0] = %g, want 75", out[0][0])
	}
	if out[0][1] != 80 {
		t.Errorf("out[0][1] = %g, want 80", out[0][1])
	}
}

func TestDownsample_RaggedEdges(t *testing.T) {
	// 3x3 with ds=2: the edge blocks average fewer pixels.
	pixels := [][]float64{
		{10, 20, 30},
		{40, 50, 60},
		{70, 80, 90},
	}

	out := Downsample(pixels, 2)

	if len(out) != 2 || len(out[0]) != 2 {
		t.Fatalf("Downsample shape = %dx%d, want 2x2", len(out), len(out[0]))
	}
	if out[0][0] != 30 {
		t.Errorf("full block = %g, want 30", out[0][0])
	}
	if out[0][1] != 45 {
		t.Errorf("right edge block = %g, want 45", out[0][1])
	}
	if out[1][0] != 75 {
		t.Errorf("bottom edge block = %g, want 75", out[1][0])
	}
	if out[1][1] != 90 {
		t.Errorf("corner block = %g, want 90", out[1][1])
	}
}

func TestDownsample_PassThrough(t *testing.T) {
	pixels := [][]float64{{1, 2}, {3, 4}}

	if got := Downsample(pixels, 1); len(got) != 2 || got[0][0] != 1 {
		t.Error("ds=1 must return the input unchanged")
	}
	if got := Downsample(pixels, 0); len(got) != 2 {
		t.Error("ds=0 must return the input unchanged")
	}
	if got := Downsample(nil, 4); got != nil {
		t.Error("empty input must pass through")
	}
}

func TestFloydSteinberg_AllBlack(t *testing.T) {
	mask := FloydSteinberg(Grayscale(solidImage(8, 8, color.Black)))

	if mask.Width != 8 || mask.Height != 8 {
		t.Fatalf("mask size = %dx%d, want 8x8", mask.Width, mask.Height)
	}
	if mask.Count() != 64 {
		t.Errorf("all-black image marked %d pixels, want 64", mask.Count())
	}
}

func TestFloydSteinberg_AllWhite(t *testing.T) {
	mask := FloydSteinberg(Grayscale(solidImage(8, 8, color.White)))

	if mask.Count() != 0 {
		t.Errorf("all-white image marked %d pixels, want 0", mask.Count())
	}
}

func TestFloydSteinberg_MidGrayDensity(t *testing.T) {
	mask := FloydSteinberg(Grayscale(solidImage(32, 32, color.Gray{Y: 128})))

	// Error diffusion preserves the average intensity: a 50% gray should
	// mark close to half the pixels.
	total := 32 * 32
	count := mask.Count()
	if count < total*4/10 || count > total*6/10 {
		t.Errorf("50%% gray marked %d of %d pixels", count, total)
	}
}

func TestFloydSteinberg_DoesNotMutateInput(t *testing.T) {
	pixels := [][]float64{{100, 200}, {30, 90}}

	FloydSteinberg(pixels)

	if pixels[0][0] != 100 || pixels[0][1] != 200 || pixels[1][0] != 30 || pixels[1][1] != 90 {
		t.Error("FloydSteinberg must not mutate its input")
	}
}

func TestFloydSteinberg_Empty(t *testing.T) {
	mask := FloydSteinberg(nil)
	if mask.Width != 0 || mask.Height != 0 {
		t.Errorf("empty input mask = %dx%d, want 0x0", mask.Width, mask.Height)
	}
}
