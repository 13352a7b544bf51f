package server

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/jbeda/geom"

	"github.com/cwbudde/tspdraw/internal/anneal"
	"github.com/cwbudde/tspdraw/internal/dither"
	"github.com/cwbudde/tspdraw/internal/store"
	"github.com/cwbudde/tspdraw/internal/tsp"
)

// buildTour runs the preprocessing pipeline for a job config: decode the
// reference image, dither it to a bilevel mask, extract the point set and
// construct the greedy initial tour.
func buildTour(cfg store.JobConfig) (*tsp.Tour, error) {
	f, err := os.Open(cfg.RefPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	pixels := dither.Grayscale(img)
	pixels = dither.Downsample(pixels, cfg.Downsample)
	mask := dither.FloydSteinberg(pixels)

	ps, err := tsp.FromMask(mask, cfg.Scale)
	if err != nil {
		return nil, err
	}

	return tsp.BuildGreedyTour(ps)
}

// annealConfigFor translates a job config into annealing parameters,
// guessing schedule values from the tour geometry where the job leaves
// them zero.
func annealConfigFor(tour *tsp.Tour, cfg store.JobConfig) anneal.Config {
	guessed := anneal.GuessConfig(tour, cfg.StepsPerBatch*cfg.Batches)

	out := guessed
	if cfg.Temperature > 0 {
		out.Temperature = cfg.Temperature
	}
	if cfg.TempCool > 0 {
		out.TempCool = cfg.TempCool
	}
	if cfg.SizeScale > 0 {
		out.SizeScale = cfg.SizeScale
	}
	if cfg.SizeCool > 0 {
		out.SizeCool = cfg.SizeCool
	}
	if cfg.NeighborCount > 0 {
		out.NeighborCount = cfg.NeighborCount
	}
	if cfg.NeighborCool > 0 {
		out.NeighborCool = cfg.NeighborCool
	}
	return out
}

// restoreTour rebuilds a tour over the freshly dithered point set using the
// visit order recorded in a checkpoint. The checkpoint is only usable when
// the dither settings match, which the caller verifies with IsCompatible.
func restoreTour(fresh *tsp.Tour, cp *store.Checkpoint) (*tsp.Tour, error) {
	restored, err := tsp.NewTour(fresh.Points().Points, cp.Order)
	if err != nil {
		return nil, fmt.Errorf("restoring tour from checkpoint: %w", err)
	}
	return restored, nil
}

// cycleSnapshot flattens the closed cycle into JSON-friendly coordinate
// pairs for the live stream and the cycle.json endpoint.
func cycleSnapshot(cycle []geom.Coord) [][2]float64 {
	out := make([][2]float64, len(cycle))
	for i, p := range cycle {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

// cycleCoords is the inverse of cycleSnapshot.
func cycleCoords(cycle [][2]float64) []geom.Coord {
	out := make([]geom.Coord, len(cycle))
	for i, p := range cycle {
		out[i] = geom.Coord{X: p[0], Y: p[1]}
	}
	return out
}
