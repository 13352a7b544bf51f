package tsp

// greedyDropFactor bounds how disproportionate the detour through the final
// chained point may be, relative to the mean edge length of the rest of the
// path, before the point is dropped from the cycle.
const greedyDropFactor = 16.0

// BuildGreedyTour constructs an initial tour by nearest-unvisited chaining:
// starting from the first point, repeatedly hop to the closest point not yet
// placed, then close the cycle back to the start. Nearest lookups go through
// a uniform grid index, keeping construction sub-quadratic.
//
// If the very last chained point would force a pathologically long closing
// detour it is dropped from the cycle instead; dropped vertices stay
// excluded for the whole run and are reported by Tour.Dropped.
//
// Returns DegenerateInputError when fewer than 3 points remain.
func BuildGreedyTour(ps *PointSet) (*Tour, error) {
	n := ps.Len()
	if n < 3 {
		return nil, &DegenerateInputError{Points: n}
	}

	grid := newGridIndex(ps.Points)
	visited := make([]bool, n)
	order := make([]int, 0, n)

	current := 0
	visited[0] = true
	order = append(order, 0)

	for len(order) < n {
		next := grid.nearestUnvisited(ps.Points[current], visited)
		if next < 0 {
			break
		}
		visited[next] = true
		order = append(order, next)
		current = next
	}

	order = maybeDropLast(ps, order)

	return NewTour(ps.Points, order)
}

// maybeDropLast drops the final chained point when routing through it costs
// disproportionately more than closing the cycle without it.
func maybeDropLast(ps *PointSet, order []int) []int {
	n := len(order)
	if n < 4 {
		return order
	}

	start := ps.Points[order[0]]
	prev := ps.Points[order[n-2]]
	last := ps.Points[order[n-1]]

	// Mean edge length of the path excluding the last hop.
	var sum float64
	for i := 0; i < n-2; i++ {
		sum += ps.Points[order[i]].DistanceFrom(ps.Points[order[i+1]])
	}
	mean := sum / float64(n-2)

	detour := prev.DistanceFrom(last) + last.DistanceFrom(start) - prev.DistanceFrom(start)
	if mean > 0 && detour > greedyDropFactor*mean {
		return order[:n-1]
	}
	return order
}
