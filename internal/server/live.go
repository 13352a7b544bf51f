package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// liveFrameInterval paces cycle frames to websocket viewers. Frames carry the
// full closed cycle, so pushing faster than the eye can follow just burns
// bandwidth.
const liveFrameInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// liveFrame is one websocket message: the current cycle plus the stats a
// viewer needs to label it.
type liveFrame struct {
	JobID  string       `json:"jobId"`
	State  JobState     `json:"state"`
	Batch  int          `json:"batch"`
	Energy float64      `json:"energy"`
	Cycle  [][2]float64 `json:"cycle"`
}

// handleLive streams the evolving cycle over a websocket. Unlike the SSE
// stream, which carries only scalar progress, this pushes the full geometry
// so a client can draw the tour as it anneals.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "jobID", jobID, "error", err)
		return
	}
	defer conn.Close()

	slog.Debug("Live viewer connected", "jobID", jobID)

	// Drain reads so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(liveFrameInterval)
	defer ticker.Stop()

	lastBatch := -1
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			job, exists := s.jobManager.SnapshotJob(jobID)
			if !exists {
				return
			}

			// Skip frames when nothing advanced.
			if job.Batch == lastBatch && job.State == StateRunning {
				continue
			}
			lastBatch = job.Batch

			frame := liveFrame{
				JobID:  job.ID,
				State:  job.State,
				Batch:  job.Batch,
				Energy: job.Energy,
				Cycle:  job.Cycle,
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				slog.Debug("Live viewer disconnected", "jobID", jobID, "error", err)
				return
			}

			if job.State == StateCompleted || job.State == StateFailed || job.State == StateCancelled {
				return
			}
		}
	}
}
