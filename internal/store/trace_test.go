package store

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func traceEntry(batch int, energy float64) TraceEntry {
	return TraceEntry{
		Batch:       batch,
		Energy:      energy,
		Temperature: 0.5,
		PoolSize:    42,
		Timestamp:   time.Now(),
	}
}

func TestTraceWriter_WriteAndRead(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	entries := []TraceEntry{
		traceEntry(1, 10.5),
		traceEntry(2, 9.8),
		traceEntry(3, 9.1),
	}
	for _, e := range entries {
		if err := tw.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Read %d entries, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if got[i].Batch != e.Batch {
			t.Errorf("entry %d: Batch = %d, want %d", i, got[i].Batch, e.Batch)
		}
		if got[i].Energy != e.Energy {
			t.Errorf("entry %d: Energy = %v, want %v", i, got[i].Energy, e.Energy)
		}
		if got[i].PoolSize != e.PoolSize {
			t.Errorf("entry %d: PoolSize = %d, want %d", i, got[i].PoolSize, e.PoolSize)
		}
	}
}

func TestTraceWriter_Append(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	if err := tw.Write(traceEntry(1, 10.0)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen in append mode, as a resumed job would
	tw, err = NewTraceWriter(baseDir, "job-1", true)
	if err != nil {
		t.Fatalf("NewTraceWriter (append) failed: %v", err)
	}
	if err := tw.Write(traceEntry(2, 9.5)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Read %d entries, want 2", len(got))
	}
	if got[0].Batch != 1 || got[1].Batch != 2 {
		t.Errorf("Batches = %d, %d, want 1, 2", got[0].Batch, got[1].Batch)
	}
}

func TestTraceWriter_Truncate(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Write(traceEntry(1, 10.0))
	tw.Write(traceEntry(2, 9.0))
	tw.Close()

	// Reopen without append: the old history is discarded
	tw, err = NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Write(traceEntry(1, 8.0))
	tw.Close()

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Read %d entries, want 1", len(got))
	}
	if got[0].Energy != 8.0 {
		t.Errorf("Energy = %v, want 8.0", got[0].Energy)
	}
}

func TestTraceWriter_Flush(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	defer tw.Close()

	if err := tw.Write(traceEntry(1, 10.0)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Entry must be readable while the writer is still open
	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Read %d entries after flush, want 1", len(got))
	}
}

func TestTraceReader_ReadIteratively(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	for i := 1; i <= 3; i++ {
		tw.Write(traceEntry(i, float64(10-i)))
	}
	tw.Close()

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	for i := 1; i <= 3; i++ {
		entry, err := tr.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if entry.Batch != i {
			t.Errorf("Batch = %d, want %d", entry.Batch, i)
		}
	}

	if _, err := tr.Read(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	baseDir := t.TempDir()

	_, err := NewTraceReader(baseDir, "missing-job")
	if err == nil {
		t.Fatal("Expected error for missing trace")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTraceWriter_StalledEntries(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	stalled := traceEntry(5, 7.2)
	stalled.Stalled = true
	stalled.PoolSize = 0
	tw.Write(traceEntry(4, 7.5))
	tw.Write(stalled)
	tw.Close()

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Read %d entries, want 2", len(got))
	}
	if got[0].Stalled {
		t.Error("First entry should not be stalled")
	}
	if !got[1].Stalled || got[1].PoolSize != 0 {
		t.Errorf("Second entry = %+v, want stalled with empty pool", got[1])
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	baseDir := t.TempDir()

	tw, err := NewTraceWriter(baseDir, "job-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := tw.Write(traceEntry(n, float64(n))); err != nil {
				t.Errorf("Write failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(baseDir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("Read %d entries, want 10", len(got))
	}
}
