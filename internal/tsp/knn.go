package tsp

// NeighborTable holds the k nearest geometric neighbors of every vertex,
// precomputed once over the fixed point set. Neighbor sets never change
// during a run; only the cycle positions of the vertices do.
type NeighborTable struct {
	k    int
	nbrs [][]int32
}

// BuildNeighborTable computes the k-nearest-neighbor lists for all points
// via the grid index. k is clamped to the largest meaningful value, n-1.
func BuildNeighborTable(ps *PointSet, k int) *NeighborTable {
	n := ps.Len()
	if k > n-1 {
		k = n - 1
	}
	if k < 1 {
		k = 1
	}

	grid := newGridIndex(ps.Points)
	t := &NeighborTable{k: k, nbrs: make([][]int32, n)}
	for i := 0; i < n; i++ {
		near := grid.kNearest(i, k)
		row := make([]int32, len(near))
		for j, v := range near {
			row[j] = int32(v)
		}
		t.nbrs[i] = row
	}
	return t
}

// K returns the table's neighbor count.
func (t *NeighborTable) K() int { return t.k }

// Neighbors returns the up-to-k nearest neighbors of vertex v, closest
// first. When k is smaller than the table's K only the k closest are
// returned; the slice aliases the table and must not be mutated.
func (t *NeighborTable) Neighbors(v, k int) []int32 {
	row := t.nbrs[v]
	if k > 0 && k < len(row) {
		return row[:k]
	}
	return row
}
