package server

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/cwbudde/tspdraw/internal/anneal"
	"github.com/cwbudde/tspdraw/internal/render"
	"github.com/cwbudde/tspdraw/internal/store"
)

// stalledPollInterval is how often a stalled worker checks for a tune
// request that might unblock it.
const stalledPollInterval = 250 * time.Millisecond

// runJob executes an annealing job in the background. If checkpointStore is
// not nil and the job has CheckpointInterval > 0, a checkpoint is written
// every that many batches. resumeFrom restores tour state from an earlier
// checkpoint when non-nil.
func runJob(ctx context.Context, jm *JobManager, checkpointStore *store.FSStore, jobID string, resumeFrom *store.Checkpoint) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	cfg := job.Config

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "ref", cfg.RefPath, "selector", cfg.Selector)

	tour, err := buildTour(cfg)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	initialEnergy := tour.Energy()
	dropped := len(tour.Dropped())
	slog.Info("Greedy tour constructed",
		"job_id", jobID,
		"vertices", tour.Len(),
		"dropped", dropped,
		"energy", initialEnergy,
	)

	startBatch := 0
	if resumeFrom != nil {
		restored, err := restoreTour(tour, resumeFrom)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		tour = restored
		startBatch = resumeFrom.Batch
		slog.Info("Resumed from checkpoint",
			"job_id", jobID,
			"batch", startBatch,
			"energy", tour.Energy(),
		)
	}

	kind, err := anneal.ParseSelectorKind(cfg.Selector)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	acfg := annealConfigFor(tour, cfg)
	if resumeFrom != nil {
		acfg.Temperature = resumeFrom.Temperature
		acfg.SizeScale = resumeFrom.SizeScale
		acfg.NeighborCount = resumeFrom.NeighborCount
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	ann, err := anneal.New(tour, kind, acfg, rng)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	jm.UpdateJob(jobID, func(j *Job) {
		j.InitialEnergy = initialEnergy
		j.Energy = tour.Energy()
		j.Vertices = tour.Len()
		j.Dropped = dropped
		j.Temperature = ann.Temperature()
		j.SizeScale = ann.SizeScale()
		j.NeighborCount = ann.NeighborCount()
		j.Selector = string(ann.SelectorKind())
		j.PoolSize = ann.PoolSize()
		j.Cycle = cycleSnapshot(ann.CyclePoints())
	})

	var trace *store.TraceWriter
	if checkpointStore != nil {
		trace, err = store.NewTraceWriter(checkpointStore.BaseDir(), jobID, resumeFrom != nil)
		if err != nil {
			slog.Warn("Trace disabled", "job_id", jobID, "error", err)
		} else {
			defer trace.Close()
		}
	}

	start := time.Now()

	for batch := startBatch; batch < cfg.Batches; {
		select {
		case <-ctx.Done():
			markJobCancelled(jm, jobID)
			return ctx.Err()
		default:
		}

		if tune := jm.takeTune(jobID); tune != nil {
			applyTune(jobID, ann, tune)
		}
		if cfg.RebuildEvery > 0 && batch > startBatch && (batch-startBatch)%cfg.RebuildEvery == 0 {
			ann.RebuildPool()
		}

		res := ann.RunBatch(cfg.StepsPerBatch)

		if !res.Stalled {
			batch++
		}
		publishBatch(jm, jobID, ann, res, batch, start)

		if trace != nil {
			entry := store.TraceEntry{
				Batch:       batch,
				Energy:      res.Energy,
				Temperature: res.Temperature,
				PoolSize:    res.PoolSize,
				Stalled:     res.Stalled,
				Timestamp:   time.Now(),
			}
			if err := trace.Write(entry); err != nil {
				slog.Warn("Trace write failed", "job_id", jobID, "error", err)
			}
		}

		if checkpointStore != nil && cfg.CheckpointInterval > 0 && batch%cfg.CheckpointInterval == 0 {
			saveCheckpoint(checkpointStore, jobID, ann, initialEnergy, batch, cfg)
		}

		if res.Stalled {
			slog.Info("Job stalled, waiting for retune",
				"job_id", jobID,
				"pool_size", res.PoolSize,
				"size_scale", ann.SizeScale(),
			)
			if err := waitForTune(ctx, jm, jobID, ann); err != nil {
				markJobCancelled(jm, jobID)
				return err
			}
		}
	}

	elapsed := time.Since(start)
	finishJob(jm, checkpointStore, trace, jobID, ann, initialEnergy, cfg, elapsed)
	return nil
}

// waitForTune blocks a stalled job until the controller queues a tune that
// yields a viable pool, or the context is cancelled. There is no automatic
// way out of a stall: surfacing it and waiting is the contract.
func waitForTune(ctx context.Context, jm *JobManager, jobID string, ann *anneal.Annealer) error {
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateStalled
		j.Stalled = true
	})

	ticker := time.NewTicker(stalledPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tune := jm.takeTune(jobID)
			if tune == nil {
				continue
			}
			applyTune(jobID, ann, tune)
			if !ann.Stalled() {
				jm.UpdateJob(jobID, func(j *Job) {
					j.State = StateRunning
					j.Stalled = false
				})
				return nil
			}
		}
	}
}

// applyTune applies controller overrides between batches.
func applyTune(jobID string, ann *anneal.Annealer, tune *TuneRequest) {
	if tune.Selector != nil {
		if kind, err := anneal.ParseSelectorKind(*tune.Selector); err == nil {
			if err := ann.SwitchSelector(kind); err != nil {
				slog.Warn("Selector switch rejected", "job_id", jobID, "error", err)
			}
		} else {
			slog.Warn("Selector switch rejected", "job_id", jobID, "error", err)
		}
	}
	if tune.Temperature != nil {
		if err := ann.SetTemperature(*tune.Temperature); err != nil {
			slog.Warn("Temperature override rejected", "job_id", jobID, "error", err)
		}
	}
	if tune.SizeScale != nil {
		if err := ann.SetSizeScale(*tune.SizeScale); err != nil {
			slog.Warn("Size scale override rejected", "job_id", jobID, "error", err)
		}
	}
	if tune.NeighborCount != nil {
		if err := ann.SetNeighborCount(*tune.NeighborCount); err != nil {
			slog.Warn("Neighbor count override rejected", "job_id", jobID, "error", err)
		}
	}
	if tune.RebuildPool {
		ann.RebuildPool()
	}
	slog.Info("Tune applied",
		"job_id", jobID,
		"temperature", ann.Temperature(),
		"size_scale", ann.SizeScale(),
		"selector", ann.SelectorKind(),
		"pool_size", ann.PoolSize(),
	)
}

// publishBatch refreshes the job record and broadcasts a progress event.
func publishBatch(jm *JobManager, jobID string, ann *anneal.Annealer, res anneal.BatchResult, batch int, start time.Time) {
	var stepsPerSec float64
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		stepsPerSec = float64(ann.Steps()) / elapsed
	}

	jm.UpdateJob(jobID, func(j *Job) {
		j.Batch = batch
		j.Energy = res.Energy
		j.Temperature = res.Temperature
		j.SizeScale = ann.SizeScale()
		j.NeighborCount = ann.NeighborCount()
		j.Selector = string(ann.SelectorKind())
		j.PoolSize = res.PoolSize
		j.Stalled = res.Stalled
		j.Steps = ann.Steps()
		j.Accepted = ann.Accepted()
		j.Cycle = cycleSnapshot(ann.CyclePoints())
	})

	state := StateRunning
	if res.Stalled {
		state = StateStalled
	}
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:       jobID,
		State:       state,
		Batch:       batch,
		Energy:      res.Energy,
		Temperature: res.Temperature,
		PoolSize:    res.PoolSize,
		Stalled:     res.Stalled,
		StepsPerSec: stepsPerSec,
		Timestamp:   time.Now(),
	})
}

func saveCheckpoint(cs *store.FSStore, jobID string, ann *anneal.Annealer, initialEnergy float64, batch int, cfg store.JobConfig) {
	cp := store.NewCheckpoint(
		jobID,
		ann.Tour().Order(),
		ann.Energy(),
		initialEnergy,
		ann.Temperature(),
		ann.SizeScale(),
		ann.NeighborCount(),
		string(ann.SelectorKind()),
		batch,
		cfg,
	)
	if err := cs.SaveCheckpoint(jobID, cp); err != nil {
		slog.Warn("Checkpoint save failed", "job_id", jobID, "error", err)
	}
}

// finishJob records completion, writes the final artifacts and broadcasts
// the terminal event.
func finishJob(jm *JobManager, cs *store.FSStore, trace *store.TraceWriter, jobID string, ann *anneal.Annealer, initialEnergy float64, cfg store.JobConfig, elapsed time.Duration) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Energy = ann.Energy()
		j.Temperature = ann.Temperature()
		j.PoolSize = ann.PoolSize()
		j.Steps = ann.Steps()
		j.Accepted = ann.Accepted()
		j.Cycle = cycleSnapshot(ann.CyclePoints())
		j.EndTime = &endTime
	})

	if cs != nil {
		saveCheckpoint(cs, jobID, ann, initialEnergy, cfg.Batches, cfg)
		if f, err := os.Create(cs.CyclePath(jobID)); err == nil {
			if err := render.WriteCycle(f, ann.CyclePoints()); err != nil {
				slog.Warn("Cycle export failed", "job_id", jobID, "error", err)
			}
			f.Close()
		}
	}
	if trace != nil {
		trace.Flush()
	}

	var stepsPerSec float64
	if elapsed.Seconds() > 0 {
		stepsPerSec = float64(ann.Steps()) / elapsed.Seconds()
	}
	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"initial_energy", initialEnergy,
		"final_energy", ann.Energy(),
		"steps_per_second", stepsPerSec,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:       jobID,
		State:       StateCompleted,
		Batch:       cfg.Batches,
		Energy:      ann.Energy(),
		Temperature: ann.Temperature(),
		PoolSize:    ann.PoolSize(),
		StepsPerSec: stepsPerSec,
		Timestamp:   time.Now(),
	})
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
