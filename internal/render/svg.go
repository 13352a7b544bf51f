// Package render persists a finished cycle as an SVG drawing. The engine
// itself owns no output format; this is the external persister side of the
// pipeline.
package render

import (
	"fmt"
	"io"

	"github.com/jbeda/geom"
)

// DefaultStyle is the stroke style applied to the cycle path.
const DefaultStyle = "stroke: black; stroke-width: 0.002; stroke-linecap: round; fill: none"

// SVG is a minimal streaming SVG writer.
type SVG struct {
	w io.Writer
}

// NewSVG wraps a writer.
func NewSVG(w io.Writer) *SVG {
	return &SVG{w}
}

func (s *SVG) printf(format string, a ...interface{}) error {
	_, err := fmt.Fprintf(s.w, format, a...)
	return err
}

// Start opens the document with the given view box.
func (s *SVG) Start(viewBox geom.Rect) error {
	return s.printf("<svg xmlns='http://www.w3.org/2000/svg' viewBox='%f %f %f %f'>\n",
		viewBox.Min.X, viewBox.Min.Y,
		viewBox.Max.X-viewBox.Min.X, viewBox.Max.Y-viewBox.Min.Y)
}

// Path writes a polyline path through pts with the given style. A closed
// cycle is drawn by passing the first point again at the end.
func (s *SVG) Path(pts []geom.Coord, style string) error {
	if len(pts) == 0 {
		return nil
	}
	if err := s.printf("<path style='%s' d='M%f,%f", style, pts[0].X, pts[0].Y); err != nil {
		return err
	}
	for _, p := range pts[1:] {
		if err := s.printf("\n  L%f,%f", p.X, p.Y); err != nil {
			return err
		}
	}
	return s.printf("'/>\n")
}

// End closes the document.
func (s *SVG) End() error {
	return s.printf("</svg>\n")
}

// WriteCycle emits a complete SVG document containing the cycle as a single
// path, with the view box padded a little around the point bounds.
func WriteCycle(w io.Writer, cycle []geom.Coord) error {
	if len(cycle) == 0 {
		return fmt.Errorf("empty cycle")
	}

	bounds := geom.Rect{Min: cycle[0], Max: cycle[0]}
	for _, p := range cycle[1:] {
		if p.X < bounds.Min.X {
			bounds.Min.X = p.X
		}
		if p.Y < bounds.Min.Y {
			bounds.Min.Y = p.Y
		}
		if p.X > bounds.Max.X {
			bounds.Max.X = p.X
		}
		if p.Y > bounds.Max.Y {
			bounds.Max.Y = p.Y
		}
	}
	pad := 0.02 * (bounds.Max.Y - bounds.Min.Y)
	bounds.Min.X -= pad
	bounds.Min.Y -= pad
	bounds.Max.X += pad
	bounds.Max.Y += pad

	svg := NewSVG(w)
	if err := svg.Start(bounds); err != nil {
		return err
	}
	if err := svg.Path(cycle, DefaultStyle); err != nil {
		return err
	}
	return svg.End()
}
