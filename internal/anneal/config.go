package anneal

import (
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/tspdraw/internal/tsp"
)

// InvalidParameterError reports a rejected annealing parameter.
type InvalidParameterError struct {
	Param  string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g: %s", e.Param, e.Value, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool {
	_, ok := target.(*InvalidParameterError)
	return ok
}

// Config holds the tunable annealing parameters. Zero values are filled with
// defaults by New; explicit out-of-range values are rejected.
type Config struct {
	// Temperature is the initial Metropolis temperature. Exactly 0 selects
	// greedy-only acceptance.
	Temperature float64

	// TempCool multiplies the temperature once per step, in (0, 1].
	TempCool float64

	// TempFloor stops multiplicative decay from underflowing to exactly
	// zero. Must be positive.
	TempFloor float64

	// SizeScale is the edge-length threshold for pool membership used by
	// the size-scale selectors.
	SizeScale float64

	// SizeCool multiplies the size scale once per step, in (0, 1].
	SizeCool float64

	// NeighborCount is the k for nearest-neighbor candidate draws. Held as
	// a float because it decays multiplicatively like the temperature; it
	// is truncated per draw and floored at 2.
	NeighborCount float64

	// NeighborCool multiplies NeighborCount once per step, in (0, 1].
	NeighborCool float64
}

const (
	defaultTempCool      = 0.9999
	defaultTempFloor     = 1e-9
	defaultNeighborCount = 12
	minNeighborCount     = 2
)

func (c Config) withDefaults() Config {
	if c.TempCool == 0 {
		c.TempCool = defaultTempCool
	}
	if c.TempFloor == 0 {
		c.TempFloor = defaultTempFloor
	}
	if c.SizeCool == 0 {
		c.SizeCool = 1.0
	}
	if c.NeighborCount == 0 {
		c.NeighborCount = defaultNeighborCount
	}
	if c.NeighborCool == 0 {
		c.NeighborCool = 1.0
	}
	return c
}

func (c Config) validate() error {
	if c.Temperature < 0 {
		return &InvalidParameterError{"temperature", c.Temperature, "must be >= 0"}
	}
	if c.TempCool <= 0 || c.TempCool > 1 {
		return &InvalidParameterError{"tempCool", c.TempCool, "must be in (0, 1]"}
	}
	if c.TempFloor <= 0 {
		return &InvalidParameterError{"tempFloor", c.TempFloor, "must be > 0"}
	}
	if c.SizeScale < 0 {
		return &InvalidParameterError{"sizeScale", c.SizeScale, "must be >= 0"}
	}
	if c.SizeCool <= 0 || c.SizeCool > 1 {
		return &InvalidParameterError{"sizeCool", c.SizeCool, "must be in (0, 1]"}
	}
	if c.NeighborCount < minNeighborCount {
		return &InvalidParameterError{"neighborCount", c.NeighborCount, "must be >= 2"}
	}
	if c.NeighborCool <= 0 || c.NeighborCool > 1 {
		return &InvalidParameterError{"neighborCool", c.NeighborCool, "must be in (0, 1]"}
	}
	return nil
}

// GuessConfig derives workable initial parameters from the edge statistics
// of a freshly constructed tour, assuming roughly uniform point density.
//
// The initial temperature makes a typical-edge-sized uphill move a coin
// flip; cooling shrinks it to a third over the planned step count. The size
// scale starts just below the largest edges (99.8th percentile) and decays
// to half the mean edge length over the same horizon.
func GuessConfig(t *tsp.Tour, totalSteps int) Config {
	n := t.Len()
	edges := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		edges[i] = t.Length(i, (i+1)%n)
		sum += edges[i]
	}
	mean := sum / float64(n)

	sort.Float64s(edges)
	initScale := percentile(edges, 99.8)
	finalScale := mean / 2

	steps := float64(totalSteps)
	if steps < 1 {
		steps = 1
	}

	cfg := Config{
		Temperature: 3 * mean / math.Ln2,
		TempCool:    math.Exp(math.Log(1.0/3) / steps),
		SizeScale:   initScale,
		SizeCool:    1.0,
	}
	if initScale > 0 && finalScale > 0 && finalScale < initScale {
		cfg.SizeCool = math.Exp(math.Log(finalScale/initScale) / steps)
	}
	return cfg.withDefaults()
}

// percentile expects sorted input; p in [0, 100].
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p / 100 * float64(len(sorted)-1))
	return sorted[idx]
}
