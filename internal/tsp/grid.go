package tsp

import (
	"math"
	"sort"

	"github.com/jbeda/geom"
)

// gridIndex is a uniform bucket grid over a fixed point set. It answers
// nearest-unvisited and k-nearest queries in roughly O(1) per query for
// evenly spread inputs, which keeps greedy construction sub-quadratic for
// the 1e4-1e5 point clouds dithering produces.
type gridIndex struct {
	points   []geom.Coord
	origin   geom.Coord
	cellSize float64
	cols     int
	rows     int
	cells    [][]int32
}

const targetPointsPerCell = 2.0

func newGridIndex(points []geom.Coord) *gridIndex {
	n := len(points)
	bounds := boundsOf(points)

	w := bounds.Max.X - bounds.Min.X
	h := bounds.Max.Y - bounds.Min.Y

	// Degenerate extents (single point, collinear clouds) still need a
	// positive cell size.
	area := w * h
	cellSize := math.Sqrt(area * targetPointsPerCell / float64(n))
	if cellSize <= 0 {
		cellSize = math.Max(math.Max(w, h)/float64(n), 1e-9)
	}

	g := &gridIndex{
		points:   points,
		origin:   bounds.Min,
		cellSize: cellSize,
		cols:     int(w/cellSize) + 1,
		rows:     int(h/cellSize) + 1,
	}
	g.cells = make([][]int32, g.cols*g.rows)
	for i, p := range points {
		c := g.cellOf(p)
		g.cells[c] = append(g.cells[c], int32(i))
	}
	return g
}

func boundsOf(points []geom.Coord) geom.Rect {
	r := geom.Rect{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
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

func (g *gridIndex) cellOf(p geom.Coord) int {
	cx := g.clampCol(int((p.X - g.origin.X) / g.cellSize))
	cy := g.clampRow(int((p.Y - g.origin.Y) / g.cellSize))
	return cy*g.cols + cx
}

func (g *gridIndex) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *gridIndex) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

// nearestUnvisited returns the index of the closest point to from with
// visited[i] == false, or -1 when every point is visited. It scans cells in
// expanding square rings and stops once the ring's lower distance bound
// exceeds the best hit so far.
func (g *gridIndex) nearestUnvisited(from geom.Coord, visited []bool) int {
	cx := g.clampCol(int((from.X - g.origin.X) / g.cellSize))
	cy := g.clampRow(int((from.Y - g.origin.Y) / g.cellSize))

	best := -1
	bestDist := math.MaxFloat64
	maxRing := g.cols
	if g.rows > maxRing {
		maxRing = g.rows
	}

	for ring := 0; ring <= maxRing; ring++ {
		// Any point in a farther ring is at least (ring-1)*cellSize away.
		if best >= 0 && float64(ring-1)*g.cellSize > bestDist {
			break
		}
		for _, cell := range g.ringCells(cx, cy, ring) {
			for _, idx := range g.cells[cell] {
				if visited[idx] {
					continue
				}
				d := from.DistanceFrom(g.points[idx])
				if d < bestDist {
					bestDist = d
					best = int(idx)
				}
			}
		}
	}
	return best
}

// kNearest returns the indices of the k closest points to points[i],
// excluding i itself, ordered by increasing distance. Fewer than k indices
// are returned when the point set is small.
func (g *gridIndex) kNearest(i, k int) []int {
	from := g.points[i]
	cx := g.clampCol(int((from.X - g.origin.X) / g.cellSize))
	cy := g.clampRow(int((from.Y - g.origin.Y) / g.cellSize))

	type cand struct {
		idx  int32
		dist float64
	}
	var cands []cand

	maxRing := g.cols
	if g.rows > maxRing {
		maxRing = g.rows
	}

	kth := math.MaxFloat64
	for ring := 0; ring <= maxRing; ring++ {
		if len(cands) >= k && float64(ring-1)*g.cellSize > kth {
			break
		}
		for _, cell := range g.ringCells(cx, cy, ring) {
			for _, idx := range g.cells[cell] {
				if int(idx) == i {
					continue
				}
				cands = append(cands, cand{idx, from.DistanceFrom(g.points[idx])})
			}
		}
		if len(cands) >= k {
			sort.Slice(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
			kth = cands[k-1].dist
		}
	}

	sort.Slice(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]int, len(cands))
	for j, c := range cands {
		out[j] = int(c.idx)
	}
	return out
}

// ringCells yields the cell indices on the square ring at Chebyshev distance
// ring from (cx, cy), clipped to the grid.
func (g *gridIndex) ringCells(cx, cy, ring int) []int {
	if ring == 0 {
		return []int{cy*g.cols + cx}
	}
	var cells []int
	x0, x1 := cx-ring, cx+ring
	y0, y1 := cy-ring, cy+ring
	for x := x0; x <= x1; x++ {
		if x < 0 || x >= g.cols {
			continue
		}
		if y0 >= 0 {
			cells = append(cells, y0*g.cols+x)
		}
		if y1 < g.rows {
			cells = append(cells, y1*g.cols+x)
		}
	}
	for y := y0 + 1; y <= y1-1; y++ {
		if y < 0 || y >= g.rows {
			continue
		}
		if x0 >= 0 {
			cells = append(cells, y*g.cols+x0)
		}
		if x1 < g.cols {
			cells = append(cells, y*g.cols+x1)
		}
	}
	return cells
}
