package main

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cwbudde/tspdraw/internal/anneal"
	"github.com/cwbudde/tspdraw/internal/dither"
	"github.com/cwbudde/tspdraw/internal/render"
	"github.com/cwbudde/tspdraw/internal/tsp"
)

var (
	refPath       string
	outPath       string
	jsonPath      string
	selectorName  string
	downsample    int
	scale         float64
	stepsPerBatch int
	batches       int
	rebuildEvery  int
	seed          int64
	temperature   float64
	tempCool      float64
	sizeScale     float64
	sizeCool      float64
	neighborCount float64
	neighborCool  float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run single-shot cycle refinement",
	Long: `Dithers the reference image into points, builds a greedy tour and
refines it with simulated annealing, writing the final cycle as SVG.`,
	RunE: runRefinement,
}

func init() {
	runCmd.Flags().StringVar(&refPath, "ref", "", "Reference image path (required)")
	runCmd.Flags().StringVar(&outPath, "out", "cycle.svg", "Output SVG path")
	runCmd.Flags().StringVar(&jsonPath, "json", "", "Optional output path for the cycle as JSON")
	runCmd.Flags().StringVar(&selectorName, "selector", "sizeneighbor", "Candidate selector: sizescale, sizeneighbor, neighbor")
	runCmd.Flags().IntVar(&downsample, "downsample", 4, "Downsample factor before dithering")
	runCmd.Flags().Float64Var(&scale, "scale", 0, "Point coordinate scale (0 normalizes to unit height)")
	runCmd.Flags().IntVar(&stepsPerBatch, "steps", 20000, "Annealing steps per batch")
	runCmd.Flags().IntVar(&batches, "batches", 100, "Number of batches")
	runCmd.Flags().IntVar(&rebuildEvery, "rebuild-every", 10, "Rebuild the candidate pool every N batches (0 disables)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	runCmd.Flags().Float64Var(&temperature, "temperature", 0, "Initial temperature (0 derives from the tour)")
	runCmd.Flags().Float64Var(&tempCool, "temp-cool", 0, "Temperature cooling factor (0 derives from the tour)")
	runCmd.Flags().Float64Var(&sizeScale, "size-scale", 0, "Pool edge length threshold (0 derives from the tour)")
	runCmd.Flags().Float64Var(&sizeCool, "size-cool", 0, "Size scale cooling factor (0 derives from the tour)")
	runCmd.Flags().Float64Var(&neighborCount, "neighbors", 0, "Neighbor candidate count (0 uses the default)")
	runCmd.Flags().Float64Var(&neighborCool, "neighbor-cool", 0, "Neighbor count cooling factor")

	runCmd.MarkFlagRequired("ref")
	rootCmd.AddCommand(runCmd)
}

func runRefinement(cmd *cobra.Command, args []string) error {
	slog.Info("Starting refinement", "selector", selectorName, "steps", stepsPerBatch, "batches", batches)

	tour, err := loadTour(refPath, downsample, scale)
	if err != nil {
		return err
	}

	initialEnergy := tour.Energy()
	slog.Info("Greedy tour constructed",
		"vertices", tour.Len(),
		"dropped", len(tour.Dropped()),
		"energy", initialEnergy,
	)

	kind, err := anneal.ParseSelectorKind(selectorName)
	if err != nil {
		return err
	}

	cfg := anneal.GuessConfig(tour, stepsPerBatch*batches)
	overrideSchedule(&cfg)

	rng := rand.New(rand.NewSource(seed))
	ann, err := anneal.New(tour, kind, cfg, rng)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(batches,
		progressbar.OptionSetDescription("annealing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	start := time.Now()
	for batch := 0; batch < batches; batch++ {
		if rebuildEvery > 0 && batch > 0 && batch%rebuildEvery == 0 {
			ann.RebuildPool()
		}

		res := ann.RunBatch(stepsPerBatch)
		bar.Add(1)

		if res.Stalled {
			// Unattended run: a drained pool means the size scale outlived
			// the long edges, so rebuild and keep going.
			ann.RebuildPool()
			if ann.Stalled() {
				slog.Warn("Pool exhausted, stopping early", "batch", batch, "size_scale", ann.SizeScale())
				break
			}
		}
	}
	elapsed := time.Since(start)
	bar.Finish()

	if err := writeCycleSVG(outPath, ann); err != nil {
		return err
	}
	if jsonPath != "" {
		if err := writeCycleJSON(jsonPath, ann); err != nil {
			return err
		}
	}

	stepsPerSec := float64(0)
	if elapsed.Seconds() > 0 {
		stepsPerSec = float64(ann.Steps()) / elapsed.Seconds()
	}

	slog.Info("Refinement complete",
		"elapsed", elapsed,
		"initial_energy", initialEnergy,
		"final_energy", ann.Energy(),
		"improvement", initialEnergy-ann.Energy(),
		"steps_per_second", fmt.Sprintf("%.0f", stepsPerSec),
	)

	fmt.Printf("Wrote %s (energy: %.3f -> %.3f, %.0f steps/sec)\n", outPath, initialEnergy, ann.Energy(), stepsPerSec)

	return nil
}

// loadTour runs the image pipeline up to the greedy tour.
func loadTour(path string, ds int, sc float64) (*tsp.Tour, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	gray := dither.Grayscale(img)
	if ds > 1 {
		gray = dither.Downsample(gray, ds)
	}
	mask := dither.FloydSteinberg(gray)

	ps, err := tsp.FromMask(mask, sc)
	if err != nil {
		return nil, err
	}

	slog.Info("Dithered reference",
		"width", mask.Width,
		"height", mask.Height,
		"points", ps.Len(),
	)

	return tsp.BuildGreedyTour(ps)
}

// overrideSchedule replaces guessed schedule values with explicit flags.
func overrideSchedule(cfg *anneal.Config) {
	if temperature > 0 {
		cfg.Temperature = temperature
	}
	if tempCool > 0 {
		cfg.TempCool = tempCool
	}
	if sizeScale > 0 {
		cfg.SizeScale = sizeScale
	}
	if sizeCool > 0 {
		cfg.SizeCool = sizeCool
	}
	if neighborCount > 0 {
		cfg.NeighborCount = neighborCount
	}
	if neighborCool > 0 {
		cfg.NeighborCool = neighborCool
	}
}

func writeCycleSVG(path string, ann *anneal.Annealer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()

	if err := render.WriteCycle(f, ann.CyclePoints()); err != nil {
		return fmt.Errorf("failed to write SVG: %w", err)
	}
	return nil
}

func writeCycleJSON(path string, ann *anneal.Annealer) error {
	cycle := ann.CyclePoints()
	pairs := make([][2]float64, len(cycle))
	for i, p := range cycle {
		pairs[i] = [2]float64{p.X, p.Y}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"energy": ann.Energy(),
		"cycle":  pairs,
	})
}
