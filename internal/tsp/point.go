package tsp

import (
	"github.com/jbeda/geom"

	"github.com/cwbudde/tspdraw/internal/dither"
)

// PointSet holds the fixed 2D coordinates the tour is built over. The slice
// is created once from a mask and never mutated afterwards; vertex indices
// into Points stay stable for the lifetime of a run.
type PointSet struct {
	Points []geom.Coord
}

// FromMask extracts one point per marked mask pixel in row-major scan order.
// X is the column, Y the row, so the point cloud preserves image layout.
//
// If scale > 0 all coordinates are multiplied by it. If scale <= 0 the
// coordinates are normalized by the mask height instead, so a full-height
// image maps into [0,1] on the Y axis.
//
// Returns EmptyInputError when the mask has no marked pixels.
func FromMask(m *dither.Mask, scale float64) (*PointSet, error) {
	if m == nil || m.Width == 0 || m.Height == 0 {
		return nil, &EmptyInputError{Source: "mask"}
	}

	if scale <= 0 {
		scale = 1.0 / float64(m.Height)
	}

	points := make([]geom.Coord, 0, m.Width*m.Height/8)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) {
				points = append(points, geom.Coord{
					X: float64(x) * scale,
					Y: float64(y) * scale,
				})
			}
		}
	}

	if len(points) == 0 {
		return nil, &EmptyInputError{Source: "mask"}
	}

	return &PointSet{Points: points}, nil
}

// FromCoords wraps an already extracted coordinate list, for callers that
// produce their own point cloud instead of a pixel mask.
func FromCoords(coords []geom.Coord) (*PointSet, error) {
	if len(coords) == 0 {
		return nil, &EmptyInputError{}
	}
	points := make([]geom.Coord, len(coords))
	copy(points, coords)
	return &PointSet{Points: points}, nil
}

// Len returns the number of points.
func (ps *PointSet) Len() int { return len(ps.Points) }

// Bounds returns the axis-aligned bounding box of the point set.
func (ps *PointSet) Bounds() geom.Rect {
	r := geom.Rect{Min: ps.Points[0], Max: ps.Points[0]}
	for _, p := range ps.Points[1:] {
		if p.X < r.Min.X {
			r.Min.X = p.X
		}
		if p.Y < r.Min.Y {
			r.Min.Y = p.Y
		}
		if p.X > r.Max.X {
			r.Max.X = p.X
		}
		if p.Y > r.Max.Y {
			r.Max.Y = p.Y
		}
	}
	return r
}
