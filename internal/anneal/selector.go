package anneal

import "fmt"

// SelectorKind identifies a candidate-pair selection strategy.
type SelectorKind string

const (
	// SelectorSizeScale draws both vertices uniformly from the pool of
	// vertices incident to a long edge. Effective early, when a few huge
	// edges dominate the energy.
	SelectorSizeScale SelectorKind = "sizescale"

	// SelectorSizeNeighbor draws the first vertex from the long-edge pool
	// and the second from its nearest geometric neighbors. Long edges are
	// usually fixable by a spatially close partner, so these proposals
	// reduce energy far more often than pool-pool pairs.
	SelectorSizeNeighbor SelectorKind = "sizeneighbor"

	// SelectorNeighbor draws the first vertex uniformly from the whole
	// cycle and the second from its nearest neighbors. Late-stage
	// refinement once the long edges are gone.
	SelectorNeighbor SelectorKind = "neighbor"
)

// ParseSelectorKind validates a selector name from config or CLI input.
func ParseSelectorKind(s string) (SelectorKind, error) {
	switch SelectorKind(s) {
	case SelectorSizeScale, SelectorSizeNeighbor, SelectorNeighbor:
		return SelectorKind(s), nil
	}
	return "", fmt.Errorf("unknown selector kind: %q", s)
}

// Selector decides which two cycle positions are proposed for a segment
// reversal at each annealing step. Implementations are owned by a single
// Annealer and are not safe for concurrent use.
type Selector interface {
	Kind() SelectorKind

	// ProposeSwap returns cycle positions p < q to reverse between. ok is
	// false when no valid pair can be produced, which drives the engine
	// into the stalled state.
	ProposeSwap() (p, q int, ok bool)

	// OnSwapApplied is called after a proposed reversal has been committed
	// so pool bookkeeping stays consistent.
	OnSwapApplied(p, q int)

	// RebuildPool recomputes pool membership from current tour edge
	// lengths and the current size scale (a warm restart).
	RebuildPool()

	// PoolSize reports how many vertices are currently eligible.
	PoolSize() int
}

// maxProposeRetries bounds resampling when a draw lands on an invalid pair
// (identical positions or the full-cycle wrap pair). Tiny pools would
// otherwise loop forever.
const maxProposeRetries = 32
