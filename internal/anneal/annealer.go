// Package anneal refines a tour with simulated annealing. A pluggable
// candidate selector proposes segment reversals, a shared Metropolis rule
// accepts or rejects them, and temperature, size scale and neighbor count
// decay multiplicatively per step. The engine is driven in bounded batches
// by an external controller, which may retune any parameter between batches.
package anneal

import (
	"math"
	"math/rand"

	"github.com/jbeda/geom"

	"github.com/cwbudde/tspdraw/internal/tsp"
)

// State is the engine's coarse condition.
type State string

const (
	// StateRunning means the active selector can produce candidate pairs.
	StateRunning State = "running"

	// StateStalled means the selector could not produce a valid pair. The
	// engine never leaves this state on its own; the controller must widen
	// the size scale, switch selectors or rebuild the pool.
	StateStalled State = "stalled"
)

// BatchResult summarizes one RunBatch invocation for the controller.
type BatchResult struct {
	Steps       int     `json:"steps"`
	Accepted    int     `json:"accepted"`
	Energy      float64 `json:"energy"`
	Temperature float64 `json:"temperature"`
	PoolSize    int     `json:"poolSize"`
	Stalled     bool    `json:"stalled"`
}

// Annealer owns a tour, the active selector and the annealing schedule for
// the lifetime of a run. It is single-threaded by contract: one batch at a
// time, reconfiguration only between batches.
type Annealer struct {
	tour     *tsp.Tour
	rng      *rand.Rand
	selector Selector
	nbrs     *tsp.NeighborTable

	temperature float64
	tempCool    float64
	tempFloor   float64
	tune        tuning

	state    State
	steps    int64
	accepted int64
}

// New creates an annealer over an initialized tour. The RNG is injected so
// runs can be replayed deterministically; it must not be shared with other
// goroutines.
func New(tour *tsp.Tour, kind SelectorKind, cfg Config, rng *rand.Rand) (*Annealer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	a := &Annealer{
		tour:        tour,
		rng:         rng,
		temperature: cfg.Temperature,
		tempCool:    cfg.TempCool,
		tempFloor:   cfg.TempFloor,
		tune: tuning{
			sizeScale:    cfg.SizeScale,
			sizeCool:     cfg.SizeCool,
			neighborHint: cfg.NeighborCount,
			neighborCool: cfg.NeighborCool,
		},
		state: StateRunning,
	}
	if err := a.SwitchSelector(kind); err != nil {
		return nil, err
	}
	return a, nil
}

// RunBatch executes up to steps annealing steps and returns the resulting
// state. It returns early with Stalled set when the selector runs out of
// candidates; the condition is a reportable state, not an error, and is
// recoverable by retuning.
func (a *Annealer) RunBatch(steps int) BatchResult {
	res := BatchResult{}
	for i := 0; i < steps; i++ {
		accepted, ok := a.step()
		if !ok {
			break
		}
		res.Steps++
		if accepted {
			res.Accepted++
		}
	}
	res.Energy = a.tour.Energy()
	res.Temperature = a.temperature
	res.PoolSize = a.selector.PoolSize()
	res.Stalled = a.state == StateStalled
	return res
}

// step runs one propose / evaluate / accept / cool cycle. ok is false when
// the selector produced no candidate, after which the engine is stalled.
func (a *Annealer) step() (accepted, ok bool) {
	p, q, ok := a.selector.ProposeSwap()
	if !ok {
		a.state = StateStalled
		return false, false
	}

	delta := a.tour.EnergyDelta(p, q)

	accept := delta <= 0
	if !accept && a.temperature > 0 {
		accept = a.rng.Float64() < math.Exp(-delta/a.temperature)
	}

	if accept {
		a.tour.Reverse(p, q, delta)
		a.selector.OnSwapApplied(p, q)
		a.accepted++
	}

	a.coolDown()
	a.steps++
	return accept, true
}

// coolDown applies the per-step multiplicative decay. The floor only guards
// the decay path: a temperature the controller explicitly set to 0 stays 0,
// keeping greedy-only acceptance deterministic.
func (a *Annealer) coolDown() {
	if a.temperature > 0 {
		a.temperature *= a.tempCool
		if a.temperature < a.tempFloor {
			a.temperature = a.tempFloor
		}
	}
	a.tune.cool()
}

// SetTemperature overwrites the current temperature. Takes effect on the
// next step; already applied swaps are never rolled back.
func (a *Annealer) SetTemperature(v float64) error {
	if v < 0 {
		return &InvalidParameterError{"temperature", v, "must be >= 0"}
	}
	a.temperature = v
	return nil
}

// SetSizeScale overwrites the size scale and rebuilds the active pool,
// clearing a stall if the new pool is viable.
func (a *Annealer) SetSizeScale(v float64) error {
	if v < 0 {
		return &InvalidParameterError{"sizeScale", v, "must be >= 0"}
	}
	a.tune.sizeScale = v
	a.RebuildPool()
	return nil
}

// SetNeighborCount overwrites the neighbor draw count k. The neighbor table
// is built or widened as needed, so the tune is valid even while a selector
// that does not use neighbors is active.
func (a *Annealer) SetNeighborCount(k float64) error {
	if k < minNeighborCount {
		return &InvalidParameterError{"neighborCount", k, "must be >= 2"}
	}
	a.tune.neighborHint = k
	a.ensureNeighborTable()
	a.refreshState()
	return nil
}

// SwitchSelector replaces the candidate selection strategy, carrying the
// current tuning values over and rebuilding pool state.
func (a *Annealer) SwitchSelector(kind SelectorKind) error {
	switch kind {
	case SelectorSizeScale:
		a.selector = newSizeScaleSelector(a.tour, a.rng, &a.tune)
	case SelectorSizeNeighbor:
		a.ensureNeighborTable()
		a.selector = newSizeNeighborSelector(a.tour, a.rng, &a.tune, a.nbrs)
	case SelectorNeighbor:
		a.ensureNeighborTable()
		a.selector = newNeighborSelector(a.tour, a.rng, &a.tune, a.nbrs)
	default:
		return &InvalidParameterError{Param: "selector", Reason: "unknown kind " + string(kind)}
	}
	a.refreshState()
	return nil
}

// RebuildPool recomputes the active selector's pool from current tour state
// (a warm restart). The tour and energy are untouched.
func (a *Annealer) RebuildPool() {
	a.selector.RebuildPool()
	a.refreshState()
}

func (a *Annealer) refreshState() {
	if a.selector.PoolSize() >= 2 {
		a.state = StateRunning
	} else {
		a.state = StateStalled
	}
}

func (a *Annealer) ensureNeighborTable() {
	k := a.tune.k()
	if a.nbrs == nil || a.nbrs.K() < k {
		a.nbrs = tsp.BuildNeighborTable(a.tour.Points(), k)
	}
}

// Energy returns the tour's running energy.
func (a *Annealer) Energy() float64 { return a.tour.Energy() }

// Temperature returns the current temperature.
func (a *Annealer) Temperature() float64 { return a.temperature }

// SizeScale returns the current size scale.
func (a *Annealer) SizeScale() float64 { return a.tune.sizeScale }

// NeighborCount returns the current (decayed) neighbor draw count.
func (a *Annealer) NeighborCount() float64 { return a.tune.neighborHint }

// PoolSize reports the active selector's pool size.
func (a *Annealer) PoolSize() int { return a.selector.PoolSize() }

// SelectorKind returns the active strategy.
func (a *Annealer) SelectorKind() SelectorKind { return a.selector.Kind() }

// State returns Running or Stalled.
func (a *Annealer) State() State { return a.state }

// Stalled reports whether the engine is waiting for reconfiguration.
func (a *Annealer) Stalled() bool { return a.state == StateStalled }

// Steps returns the total number of steps processed.
func (a *Annealer) Steps() int64 { return a.steps }

// Accepted returns the total number of accepted swaps.
func (a *Annealer) Accepted() int64 { return a.accepted }

// Tour exposes the underlying tour for checkpointing and export.
func (a *Annealer) Tour() *tsp.Tour { return a.tour }

// CyclePoints returns the closed cycle for rendering or persistence.
func (a *Annealer) CyclePoints() []geom.Coord { return a.tour.CyclePoints() }
