package statusapi

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Progress is the snapshot broadcast over the websocket hub and served
// from GET /progress: the stage currently running and how far it has
// gotten, tagged with the run's UUID so a client reconnecting mid-run
// can tell whether it's watching the same pipeline invocation.
type Progress struct {
	RunID      string `json:"runId"`
	Stage      string `json:"stage"`
	BatchIndex int    `json:"batchIndex"`
	Processed  int    `json:"processed"`
}

// Reporter is the collaborator each pipeline stage calls into after
// every committed batch. It keeps the latest Progress for GET
// /progress to serve synchronously, and pushes the same snapshot to
// the Hub for GET /progress/ws subscribers.
type Reporter struct {
	hub   *Hub
	runID uuid.UUID

	mu       sync.Mutex
	progress Progress
}

func NewReporter(hub *Hub, runID uuid.UUID) *Reporter {
	return &Reporter{hub: hub, runID: runID}
}

// Report records a stage's progress through batchIndex (processed
// total so far) and broadcasts it to any connected websocket clients.
// Stages call this once per committed batch, never concurrently with
// themselves, so the mutex only guards against a concurrent GET
// /progress read.
func (r *Reporter) Report(stage string, batchIndex, processed int) {
	p := Progress{RunID: r.runID.String(), Stage: stage, BatchIndex: batchIndex, Processed: processed}

	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()

	if r.hub == nil {
		return
	}
	if data, err := json.Marshal(p); err == nil {
		r.hub.Broadcast(data)
	}
}

// Snapshot returns the most recently reported Progress.
func (r *Reporter) Snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}
