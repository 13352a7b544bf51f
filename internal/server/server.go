package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/tspdraw/internal/render"
	"github.com/cwbudde/tspdraw/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager  *JobManager
	checkpoints *store.FSStore
	addr        string
	server      *http.Server
}

// NewServer creates a new HTTP server. checkpoints may be nil, in which case
// jobs run without persistence.
func NewServer(addr string, checkpoints *store.FSStore) *Server {
	return &Server{
		jobManager:  NewJobManager(),
		checkpoints: checkpoints,
		addr:        addr,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)

	// Wrap with middleware
	handler := s.loggingMiddleware(s.corsMiddleware(mux))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	// Parse job ID from path
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetJobStatus(w, r, jobID)
		case http.MethodDelete:
			s.handleCancelJob(w, r, jobID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "status":
		s.handleGetJobStatus(w, r, jobID)
	case "events":
		s.handleJobStream(w, r, jobID)
	case "live":
		s.handleLive(w, r, jobID)
	case "tune":
		s.handleTuneJob(w, r, jobID)
	case "cycle.svg":
		s.handleGetCycleSVG(w, r, jobID)
	case "cycle.json":
		s.handleGetCycleJSON(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	// Validate config
	if config.RefPath == "" {
		http.Error(w, "refPath is required", http.StatusBadRequest)
		return
	}
	applyConfigDefaults(&config)

	// Create job
	job := s.jobManager.CreateJob(config)

	// Start worker in background
	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.registerCancel(job.ID, cancel)
	go runJob(ctx, s.jobManager, s.checkpoints, job.ID, nil)

	// Return job
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// applyConfigDefaults fills zero-valued job settings with usable defaults.
// Annealing schedule fields (temperature, cooling, size scale) stay zero
// here: the worker derives those from the tour when unset.
func applyConfigDefaults(config *JobConfig) {
	if config.Downsample <= 0 {
		config.Downsample = 4
	}
	if config.Selector == "" {
		config.Selector = "sizeneighbor"
	}
	if config.StepsPerBatch <= 0 {
		config.StepsPerBatch = 20000
	}
	if config.Batches <= 0 {
		config.Batches = 100
	}
	if config.CheckpointInterval <= 0 {
		config.CheckpointInterval = 10
	}
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.SnapshotJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	stepsPerSec := float64(0)
	if elapsed.Seconds() > 0 {
		stepsPerSec = float64(job.Steps) / elapsed.Seconds()
	}

	response := map[string]interface{}{
		"id":            job.ID,
		"state":         job.State,
		"config":        job.Config,
		"energy":        job.Energy,
		"initialEnergy": job.InitialEnergy,
		"temperature":   job.Temperature,
		"sizeScale":     job.SizeScale,
		"neighborCount": job.NeighborCount,
		"selector":      job.Selector,
		"poolSize":      job.PoolSize,
		"stalled":       job.Stalled,
		"batch":         job.Batch,
		"steps":         job.Steps,
		"accepted":      job.Accepted,
		"vertices":      job.Vertices,
		"dropped":       job.Dropped,
		"elapsed":       elapsed.Seconds(),
		"stepsPerSec":   stepsPerSec,
		"startTime":     job.StartTime,
		"endTime":       job.EndTime,
		"error":         job.Error,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleTuneJob handles POST /api/v1/jobs/:id/tune. The override is queued
// and picked up by the worker at the next batch boundary.
func (s *Server) handleTuneJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var tune TuneRequest
	if err := json.NewDecoder(r.Body).Decode(&tune); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.jobManager.QueueTune(jobID, tune); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

// handleCancelJob handles DELETE /api/v1/jobs/:id
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	if !s.jobManager.CancelJob(jobID) {
		http.Error(w, "Job is not running", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelling"})
}

// handleGetCycleSVG handles GET /api/v1/jobs/:id/cycle.svg. The drawing is
// rendered from the latest in-memory cycle, not the persisted artifact, so
// it works for running jobs too.
func (s *Server) handleGetCycleSVG(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.SnapshotJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if len(job.Cycle) == 0 {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")

	if err := render.WriteCycle(w, cycleCoords(job.Cycle)); err != nil {
		slog.Error("Failed to write SVG", "error", err)
	}
}

// handleGetCycleJSON handles GET /api/v1/jobs/:id/cycle.json
func (s *Server) handleGetCycleJSON(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.SnapshotJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if len(job.Cycle) == 0 {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobId":  job.ID,
		"batch":  job.Batch,
		"energy": job.Energy,
		"cycle":  job.Cycle,
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
