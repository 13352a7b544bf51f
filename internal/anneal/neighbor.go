package anneal

import (
	"math/rand"

	"github.com/cwbudde/tspdraw/internal/tsp"
)

// neighborSelector draws the first vertex uniformly from the whole cycle
// and the second from its k nearest geometric neighbors. There is no pool:
// once the large edges are mostly gone, size thresholds stop helping and
// uniform global sampling keeps every region covered.
type neighborSelector struct {
	tour *tsp.Tour
	rng  *rand.Rand
	tune *tuning
	nbrs *tsp.NeighborTable
}

func newNeighborSelector(tour *tsp.Tour, rng *rand.Rand, tune *tuning, nbrs *tsp.NeighborTable) *neighborSelector {
	return &neighborSelector{tour: tour, rng: rng, tune: tune, nbrs: nbrs}
}

func (s *neighborSelector) Kind() SelectorKind { return SelectorNeighbor }

// PoolSize reports the whole cycle: every vertex is eligible.
func (s *neighborSelector) PoolSize() int { return s.tour.Len() }

func (s *neighborSelector) ProposeSwap() (int, int, bool) {
	n := s.tour.Len()
	for retry := 0; retry < maxProposeRetries; retry++ {
		a := s.rng.Intn(n)
		b, ok := randomNeighborPos(s.tour, s.nbrs, s.rng, s.tour.VertexAt(a), s.tune.k())
		if !ok {
			continue
		}
		if p, q, ok := orderPair(a, b, n); ok {
			return p, q, true
		}
	}
	return 0, 0, false
}

func (s *neighborSelector) OnSwapApplied(p, q int) {}

// RebuildPool is a no-op: the selector has no pool state to refresh.
func (s *neighborSelector) RebuildPool() {}
