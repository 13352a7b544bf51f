package anneal

import (
	"math/rand"

	"github.com/cwbudde/tspdraw/internal/tsp"
)

// tuning holds the live-tunable selector parameters, shared between the
// annealer and whichever selector is active so a mid-run selector switch
// keeps the current values.
type tuning struct {
	sizeScale    float64
	sizeCool     float64
	neighborHint float64 // float k, decays like the temperature
	neighborCool float64
}

func (tn *tuning) cool() {
	tn.sizeScale *= tn.sizeCool
	tn.neighborHint *= tn.neighborCool
	if tn.neighborHint < minNeighborCount {
		tn.neighborHint = minNeighborCount
	}
}

func (tn *tuning) k() int {
	k := int(tn.neighborHint)
	if k < minNeighborCount {
		k = minNeighborCount
	}
	return k
}

// sizeScaleSelector keeps a pool of cycle positions whose vertices touched
// an edge longer than the size scale at the last rebuild. Proposals draw two
// distinct pool members uniformly.
//
// The pool is deliberately not refreshed per step; reversals merely permute
// which vertex a pooled position refers to, which does not bias uniform
// sampling. Positions whose incident edges have shrunk below the scale are
// discarded lazily when drawn.
type sizeScaleSelector struct {
	tour *tsp.Tour
	rng  *rand.Rand
	tune *tuning
	pool []int32
}

func newSizeScaleSelector(tour *tsp.Tour, rng *rand.Rand, tune *tuning) *sizeScaleSelector {
	s := &sizeScaleSelector{tour: tour, rng: rng, tune: tune}
	s.RebuildPool()
	return s
}

func (s *sizeScaleSelector) Kind() SelectorKind { return SelectorSizeScale }

func (s *sizeScaleSelector) PoolSize() int { return len(s.pool) }

// RebuildPool recomputes membership from the tour's current edge lengths.
// Membership then stays fixed (modulo lazy removal) until the next rebuild:
// the threshold is compared against lengths as of this rebuild, not live
// lengths.
func (s *sizeScaleSelector) RebuildPool() {
	n := s.tour.Len()
	s.pool = s.pool[:0]
	for p := 0; p < n; p++ {
		back, fwd := s.tour.EdgeLengths(p)
		if back > s.tune.sizeScale || fwd > s.tune.sizeScale {
			s.pool = append(s.pool, int32(p))
		}
	}
}

// drawPooled picks a random eligible pool slot, lazily evicting entries
// whose incident edges have both shrunk below the current scale. Returns
// slot -1 when the pool is exhausted.
func (s *sizeScaleSelector) drawPooled() (slot int, pos int) {
	for len(s.pool) > 0 {
		slot = s.rng.Intn(len(s.pool))
		pos = int(s.pool[slot])
		back, fwd := s.tour.EdgeLengths(pos)
		if back > s.tune.sizeScale || fwd > s.tune.sizeScale {
			return slot, pos
		}
		// Stale entry: swap-remove and redraw.
		s.pool[slot] = s.pool[len(s.pool)-1]
		s.pool = s.pool[:len(s.pool)-1]
	}
	return -1, -1
}

func (s *sizeScaleSelector) ProposeSwap() (int, int, bool) {
	for retry := 0; retry < maxProposeRetries; retry++ {
		if len(s.pool) < 2 {
			return 0, 0, false
		}
		_, a := s.drawPooled()
		if a < 0 {
			return 0, 0, false
		}
		_, b := s.drawPooled()
		if b < 0 {
			return 0, 0, false
		}
		if p, q, ok := orderPair(a, b, s.tour.Len()); ok {
			return p, q, true
		}
	}
	return 0, 0, false
}

// OnSwapApplied is a no-op: a reversal only permutes which vertices the
// pooled positions refer to, and stale entries are evicted on draw.
func (s *sizeScaleSelector) OnSwapApplied(p, q int) {}

// orderPair sorts a candidate position pair and rejects the degenerate
// cases: identical positions and the full-cycle pair (0, n-1), whose
// reversal is topologically a no-op but would corrupt the incremental
// energy delta.
func orderPair(a, b, n int) (int, int, bool) {
	if a == b {
		return 0, 0, false
	}
	if a > b {
		a, b = b, a
	}
	if a == 0 && b == n-1 {
		return 0, 0, false
	}
	return a, b, true
}
