package anneal

import (
	"math/rand"

	"github.com/cwbudde/tspdraw/internal/tsp"
)

// sizeNeighborSelector draws the first vertex from the long-edge pool and
// the second from the first vertex's k nearest geometric neighbors. Neighbor
// sets are precomputed over the fixed point set; only the cycle positions of
// the endpoints move.
type sizeNeighborSelector struct {
	sizeScaleSelector
	nbrs     *tsp.NeighborTable
	lastSlot int
}

func newSizeNeighborSelector(tour *tsp.Tour, rng *rand.Rand, tune *tuning, nbrs *tsp.NeighborTable) *sizeNeighborSelector {
	s := &sizeNeighborSelector{
		sizeScaleSelector: sizeScaleSelector{tour: tour, rng: rng, tune: tune},
		nbrs:              nbrs,
		lastSlot:          -1,
	}
	s.RebuildPool()
	return s
}

func (s *sizeNeighborSelector) Kind() SelectorKind { return SelectorSizeNeighbor }

// ProposeSwap keeps drawing from pools of size 1, unlike the pool-pool
// selector: only the first vertex comes from the pool, the partner from its
// nearest neighbors. A size-1 pool only arises through mid-batch lazy
// eviction; availability after a rebuild is still judged by the >= 2
// threshold in refreshState.
func (s *sizeNeighborSelector) ProposeSwap() (int, int, bool) {
	for retry := 0; retry < maxProposeRetries; retry++ {
		if len(s.pool) < 1 {
			return 0, 0, false
		}
		slot, a := s.drawPooled()
		if a < 0 {
			return 0, 0, false
		}

		b, ok := randomNeighborPos(s.tour, s.nbrs, s.rng, s.tour.VertexAt(a), s.tune.k())
		if !ok {
			continue
		}
		if p, q, ok := orderPair(a, b, s.tour.Len()); ok {
			s.lastSlot = slot
			return p, q, true
		}
	}
	return 0, 0, false
}

// OnSwapApplied re-points the pool slot used for the first draw at the far
// end of the reversed segment; the pooled vertex itself now sits there, so
// the slot keeps tracking a long-edge vertex.
func (s *sizeNeighborSelector) OnSwapApplied(p, q int) {
	if s.lastSlot >= 0 && s.lastSlot < len(s.pool) {
		s.pool[s.lastSlot] = int32(q)
	}
	s.lastSlot = -1
}

// randomNeighborPos picks one of vertex v's k nearest neighbors uniformly
// and returns its current cycle position. Neighbors dropped at tour
// construction have no position and are skipped by redraw.
func randomNeighborPos(tour *tsp.Tour, nbrs *tsp.NeighborTable, rng *rand.Rand, v, k int) (int, bool) {
	cand := nbrs.Neighbors(v, k)
	if len(cand) == 0 {
		return 0, false
	}
	for retry := 0; retry < maxProposeRetries; retry++ {
		w := int(cand[rng.Intn(len(cand))])
		if pos := tour.PositionOf(w); pos >= 0 {
			return pos, true
		}
	}
	return 0, false
}
