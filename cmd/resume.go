package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cwbudde/tspdraw/internal/anneal"
	"github.com/cwbudde/tspdraw/internal/store"
	"github.com/cwbudde/tspdraw/internal/tsp"
)

var (
	resumeDataDir string
	resumeOut     string
	extraBatches  int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a refinement from its checkpoint",
	Long: `Rebuilds the point set from the checkpointed settings, restores the
saved cycle and schedule, and continues annealing where the run stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", defaultDataDir(), "Base directory for checkpoint storage")
	resumeCmd.Flags().StringVar(&resumeOut, "out", "cycle.svg", "Output SVG path")
	resumeCmd.Flags().IntVar(&extraBatches, "extra-batches", 0, "Run N batches beyond the configured total")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	cp, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint is not usable: %w", err)
	}

	cfg := cp.Config
	slog.Info("Loaded checkpoint",
		"job_id", jobID,
		"batch", cp.Batch,
		"energy", cp.Energy,
		"selector", cp.Selector,
	)

	// The point set is deterministic in the dither settings, so rebuilding
	// it from the reference reproduces the vertices the order refers to.
	fresh, err := loadTour(cfg.RefPath, cfg.Downsample, cfg.Scale)
	if err != nil {
		return err
	}
	if err := cp.IsCompatible(cfg); err != nil {
		return err
	}

	tour, err := tsp.NewTour(fresh.Points().Points, cp.Order)
	if err != nil {
		return fmt.Errorf("failed to restore cycle: %w", err)
	}

	kind, err := anneal.ParseSelectorKind(cp.Selector)
	if err != nil {
		return err
	}

	acfg := anneal.GuessConfig(tour, cfg.StepsPerBatch*cfg.Batches)
	acfg.Temperature = cp.Temperature
	acfg.SizeScale = cp.SizeScale
	acfg.NeighborCount = cp.NeighborCount
	if cfg.TempCool > 0 {
		acfg.TempCool = cfg.TempCool
	}
	if cfg.SizeCool > 0 {
		acfg.SizeCool = cfg.SizeCool
	}
	if cfg.NeighborCool > 0 {
		acfg.NeighborCool = cfg.NeighborCool
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	ann, err := anneal.New(tour, kind, acfg, rng)
	if err != nil {
		return err
	}

	totalBatches := cfg.Batches + extraBatches
	if cp.Batch >= totalBatches {
		return fmt.Errorf("checkpoint already at batch %d of %d, nothing to resume", cp.Batch, totalBatches)
	}

	bar := progressbar.NewOptions(totalBatches-cp.Batch,
		progressbar.OptionSetDescription("annealing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	start := time.Now()
	for batch := cp.Batch; batch < totalBatches; batch++ {
		if cfg.RebuildEvery > 0 && batch > cp.Batch && batch%cfg.RebuildEvery == 0 {
			ann.RebuildPool()
		}

		res := ann.RunBatch(cfg.StepsPerBatch)
		bar.Add(1)

		if res.Stalled {
			ann.RebuildPool()
			if ann.Stalled() {
				slog.Warn("Pool exhausted, stopping early", "batch", batch)
				break
			}
		}

		if cfg.CheckpointInterval > 0 && (batch+1)%cfg.CheckpointInterval == 0 {
			next := store.NewCheckpoint(
				jobID,
				ann.Tour().Order(),
				ann.Energy(),
				cp.InitialEnergy,
				ann.Temperature(),
				ann.SizeScale(),
				ann.NeighborCount(),
				string(ann.SelectorKind()),
				batch+1,
				cfg,
			)
			if err := checkpointStore.SaveCheckpoint(jobID, next); err != nil {
				slog.Warn("Checkpoint save failed", "job_id", jobID, "error", err)
			}
		}
	}
	elapsed := time.Since(start)
	bar.Finish()

	if err := writeCycleSVG(resumeOut, ann); err != nil {
		return err
	}

	slog.Info("Resume complete",
		"job_id", jobID,
		"elapsed", elapsed,
		"resumed_energy", cp.Energy,
		"final_energy", ann.Energy(),
	)

	fmt.Printf("Wrote %s (energy: %.3f -> %.3f)\n", resumeOut, cp.Energy, ann.Energy())
	return nil
}
