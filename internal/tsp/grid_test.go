package tsp

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/jbeda/geom"
)

func randomCloud(n int, seed int64) []geom.Coord {
	rng := rand.New(rand.NewSource(seed))
	points := make([]geom.Coord, n)
	for i := range points {
		points[i] = geom.Coord{X: rng.Float64() * 10, Y: rng.Float64() * 10}
	}
	return points
}

func bruteNearestUnvisited(points []geom.Coord, from geom.Coord, visited []bool) int {
	best := -1
	bestDist := math.MaxFloat64
	for i, p := range points {
		if visited[i] {
			continue
		}
		if d := from.DistanceFrom(p); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func TestGridIndex_NearestUnvisitedMatchesBruteForce(t *testing.T) {
	points := randomCloud(200, 7)
	g := newGridIndex(points)
	rng := rand.New(rand.NewSource(8))

	visited := make([]bool, len(points))
	for i := 0; i < 50; i++ {
		visited[rng.Intn(len(points))] = true
	}

	for trial := 0; trial < 100; trial++ {
		from := geom.Coord{X: rng.Float64() * 10, Y: rng.Float64() * 10}
		got := g.nearestUnvisited(from, visited)
		want := bruteNearestUnvisited(points, from, visited)
		if got != want {
			gd := from.DistanceFrom(points[got])
			wd := from.DistanceFrom(points[want])
			// Ties between equidistant points may resolve either way.
			if math.Abs(gd-wd) > 1e-12 {
				t.Fatalf("nearestUnvisited = %d (dist %g), want %d (dist %g)", got, gd, want, wd)
			}
		}
	}
}

func TestGridIndex_NearestUnvisitedAllVisited(t *testing.T) {
	points := randomCloud(10, 3)
	g := newGridIndex(points)

	visited := make([]bool, len(points))
	for i := range visited {
		visited[i] = true
	}

	if got := g.nearestUnvisited(points[0], visited); got != -1 {
		t.Errorf("nearestUnvisited = %d, want -1 when all visited", got)
	}
}

func TestGridIndex_KNearestMatchesBruteForce(t *testing.T) {
	points := randomCloud(150, 11)
	g := newGridIndex(points)

	for _, i := range []int{0, 17, 80, 149} {
		got := g.kNearest(i, 8)
		if len(got) != 8 {
			t.Fatalf("kNearest(%d, 8) returned %d indices", i, len(got))
		}

		type cand struct {
			idx  int
			dist float64
		}
		var all []cand
		for j, p := range points {
			if j == i {
				continue
			}
			all = append(all, cand{j, points[i].DistanceFrom(p)})
		}
		sort.Slice(all, func(a, b int) bool { return all[a].dist < all[b].dist })

		for j, idx := range got {
			gd := points[i].DistanceFrom(points[idx])
			if math.Abs(gd-all[j].dist) > 1e-12 {
				t.Errorf("kNearest(%d)[%d] = %d at dist %g, want dist %g", i, j, idx, gd, all[j].dist)
			}
		}
	}
}

func TestGridIndex_KNearestSmallSet(t *testing.T) {
	points := []geom.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	g := newGridIndex(points)

	got := g.kNearest(0, 10)
	if len(got) != 2 {
		t.Fatalf("kNearest on 3 points returned %d indices, want 2", len(got))
	}
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("kNearest(0) = %v, want [1 2]", got)
	}
}

func TestGridIndex_SinglePoint(t *testing.T) {
	points := []geom.Coord{{X: 5, Y: 5}}
	g := newGridIndex(points)

	visited := make([]bool, 1)
	if got := g.nearestUnvisited(geom.Coord{X: 0, Y: 0}, visited); got != 0 {
		t.Errorf("nearestUnvisited = %d, want 0", got)
	}
	if got := g.kNearest(0, 3); len(got) != 0 {
		t.Errorf("kNearest on single point = %v, want empty", got)
	}
}
