package server

import (
	"testing"
	"time"
)

func testJobConfig() JobConfig {
	return JobConfig{
		RefPath:       "test.png",
		Downsample:    4,
		Selector:      "sizeneighbor",
		StepsPerBatch: 1000,
		Batches:       10,
		Seed:          42,
	}
}

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testJobConfig())

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}

	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}

	if job.Config.RefPath != "test.png" {
		t.Errorf("Config not set correctly")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testJobConfig())

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should exist")
	}

	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	_, exists = jm.GetJob("nonexistent")
	if exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	jm.CreateJob(testJobConfig())
	jm.CreateJob(testJobConfig())

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testJobConfig())

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Batch = 10
		j.Energy = 123.45
	})

	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning {
		t.Error("State should be updated")
	}
	if updated.Batch != 10 {
		t.Error("Batch should be updated")
	}
	if updated.Energy != 123.45 {
		t.Error("Energy should be updated")
	}

	err = jm.UpdateJob("nonexistent", func(j *Job) {})
	if err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestJobManager_SnapshotJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testJobConfig())
	jm.UpdateJob(job.ID, func(j *Job) {
		j.Energy = 7.5
		j.Cycle = [][2]float64{{0, 0}, {1, 0}, {0, 0}}
	})

	snap, exists := jm.SnapshotJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if snap.Energy != 7.5 {
		t.Errorf("Energy = %v, want 7.5", snap.Energy)
	}
	if len(snap.Cycle) != 3 {
		t.Errorf("Cycle length = %d, want 3", len(snap.Cycle))
	}

	if _, exists := jm.SnapshotJob("nonexistent"); exists {
		t.Error("Should not snapshot nonexistent job")
	}
}

func TestJobManager_QueueTune(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testJobConfig())

	temp := 2.5
	if err := jm.QueueTune("nonexistent", TuneRequest{Temperature: &temp}); err == nil {
		t.Error("Tune of unknown job should fail")
	}

	if err := jm.QueueTune(job.ID, TuneRequest{Temperature: &temp}); err != nil {
		t.Fatalf("QueueTune failed: %v", err)
	}

	// A second request merges field-wise with the pending one
	sizeScale := 0.4
	if err := jm.QueueTune(job.ID, TuneRequest{SizeScale: &sizeScale}); err != nil {
		t.Fatalf("Second tune should succeed: %v", err)
	}

	tune := jm.takeTune(job.ID)
	if tune == nil {
		t.Fatal("Expected queued tune")
	}
	if tune.Temperature == nil || *tune.Temperature != 2.5 {
		t.Error("Temperature override lost in merge")
	}
	if tune.SizeScale == nil || *tune.SizeScale != 0.4 {
		t.Error("SizeScale override lost in merge")
	}

	if jm.takeTune(job.ID) != nil {
		t.Error("Tune should be consumed after takeTune")
	}
}

func TestJobManager_GetRunningJobs(t *testing.T) {
	jm := NewJobManager()

	running := jm.CreateJob(testJobConfig())
	stalled := jm.CreateJob(testJobConfig())
	jm.CreateJob(testJobConfig()) // stays pending

	jm.UpdateJob(running.ID, func(j *Job) { j.State = StateRunning })
	jm.UpdateJob(stalled.ID, func(j *Job) { j.State = StateStalled })

	jobs := jm.GetRunningJobs()
	if len(jobs) != 2 {
		t.Errorf("Expected 2 active jobs, got %d", len(jobs))
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testJobConfig())

	// Simulate concurrent updates
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(batch int) {
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Batch = batch
				time.Sleep(1 * time.Millisecond)
			})
			done <- true
		}(i)
	}

	// Wait for all updates
	for i := 0; i < 10; i++ {
		<-done
	}

	// Should not crash - actual value depends on race
	_, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}
