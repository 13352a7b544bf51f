package tsp

import (
	"fmt"

	"github.com/jbeda/geom"
)

// Tour is a cyclic permutation over a fixed point set together with its
// running energy (total edge length). Positions index into the cycle, vertex
// indices into the backing point array; both views are kept consistent so
// neighbor lookups by vertex index stay valid across segment reversals.
//
// The running energy is only ever adjusted by the incremental delta of an
// applied reversal, never recomputed wholesale, so it tracks the true sum to
// floating-point tolerance at all times.
type Tour struct {
	points []geom.Coord
	order  []int32 // position -> vertex index
	pos    []int32 // vertex index -> position, -1 for dropped vertices
	energy float64
}

// NewTour builds a tour from an explicit ordering of vertex indices.
// order must reference distinct valid indices into points; it may omit
// points (vertices dropped at construction). Fewer than 3 positions is a
// DegenerateInputError.
func NewTour(points []geom.Coord, order []int) (*Tour, error) {
	if len(order) < 3 {
		return nil, &DegenerateInputError{Points: len(order)}
	}

	t := &Tour{
		points: points,
		order:  make([]int32, len(order)),
		pos:    make([]int32, len(points)),
	}
	for i := range t.pos {
		t.pos[i] = -1
	}
	for p, v := range order {
		if v < 0 || v >= len(points) {
			return nil, fmt.Errorf("order[%d] = %d out of range [0,%d)", p, v, len(points))
		}
		if t.pos[v] >= 0 {
			return nil, fmt.Errorf("vertex %d appears twice in order", v)
		}
		t.order[p] = int32(v)
		t.pos[v] = int32(p)
	}

	t.energy = t.recompute()
	return t, nil
}

// Len returns the number of vertices in the cycle.
func (t *Tour) Len() int { return len(t.order) }

// Energy returns the running total edge length.
func (t *Tour) Energy() float64 { return t.energy }

// Point returns the coordinate of vertex v.
func (t *Tour) Point(v int) geom.Coord { return t.points[v] }

// VertexAt returns the vertex index at cycle position p.
func (t *Tour) VertexAt(p int) int { return int(t.order[p]) }

// PositionOf returns the cycle position of vertex v, or -1 if v was dropped
// at construction.
func (t *Tour) PositionOf(v int) int { return int(t.pos[v]) }

// Length returns the Euclidean distance between the points at cycle
// positions i and j.
func (t *Tour) Length(i, j int) float64 {
	return t.points[t.order[i]].DistanceFrom(t.points[t.order[j]])
}

// EdgeLengths returns the lengths of the backward and forward edges incident
// to the vertex at cycle position p.
func (t *Tour) EdgeLengths(p int) (backward, forward float64) {
	n := len(t.order)
	return t.Length((p+n-1)%n, p), t.Length(p, (p+1)%n)
}

// EnergyDelta computes the net energy change of reversing the cycle segment
// between positions p and q inclusive, touching only the two edges incident
// to the segment ends. Requires 0 <= p < q < Len() and not the full-cycle
// pair (0, Len()-1), which is topologically a no-op.
func (t *Tour) EnergyDelta(p, q int) float64 {
	n := len(t.order)
	prev := (p + n - 1) % n
	next := (q + 1) % n

	a := t.points[t.order[prev]] // vertex before the segment
	b := t.points[t.order[p]]    // segment start
	c := t.points[t.order[q]]    // segment end
	d := t.points[t.order[next]] // vertex after the segment

	oldLen := a.DistanceFrom(b) + c.DistanceFrom(d)
	newLen := a.DistanceFrom(c) + b.DistanceFrom(d)
	return newLen - oldLen
}

// Reverse applies the segment reversal between positions p and q inclusive
// and adds delta (as previously computed by EnergyDelta) to the running
// energy. The order array, the position map and the energy are updated
// together; no partially applied state is observable to callers.
func (t *Tour) Reverse(p, q int, delta float64) {
	for i, j := p, q; i < j; i, j = i+1, j-1 {
		t.order[i], t.order[j] = t.order[j], t.order[i]
		t.pos[t.order[i]] = int32(i)
		t.pos[t.order[j]] = int32(j)
	}
	t.energy += delta
}

// Order returns a copy of the current position -> vertex index mapping.
func (t *Tour) Order() []int {
	out := make([]int, len(t.order))
	for i, v := range t.order {
		out[i] = int(v)
	}
	return out
}

// CyclePoints returns the cycle coordinates in tour order with the first
// point repeated at the end, ready for a renderer or persister.
func (t *Tour) CyclePoints() []geom.Coord {
	out := make([]geom.Coord, 0, len(t.order)+1)
	for _, v := range t.order {
		out = append(out, t.points[v])
	}
	out = append(out, t.points[t.order[0]])
	return out
}

// Points returns the backing point set view of the tour. The slice is the
// tour's own backing array and must be treated as read-only.
func (t *Tour) Points() *PointSet {
	return &PointSet{Points: t.points}
}

// Dropped returns the vertex indices of the backing point set that are not
// part of the cycle (points dropped at construction).
func (t *Tour) Dropped() []int {
	var out []int
	for v, p := range t.pos {
		if p < 0 {
			out = append(out, v)
		}
	}
	return out
}

// RecomputedEnergy independently re-sums all edge lengths. It exists for
// diagnostics and invariant checks; the annealing hot path never calls it.
func (t *Tour) RecomputedEnergy() float64 { return t.recompute() }

func (t *Tour) recompute() float64 {
	n := len(t.order)
	sum := t.Length(n-1, 0)
	for i := 0; i < n-1; i++ {
		sum += t.Length(i, i+1)
	}
	return sum
}
