package model

// WorkerStatus is the lifecycle state published in a WorkerRecord.
type WorkerStatus string

const (
	WorkerIdle WorkerStatus = "idle"
	WorkerBusy WorkerStatus = "busy"
)

// WorkerRecord is the heartbeat payload a Worker writes into the
// workers hash.
type WorkerRecord struct {
	ID           string       `json:"id"`
	Status       WorkerStatus `json:"status"`
	CurrentJobID string       `json:"currentJobId,omitempty"`
	Timestamp    int64        `json:"timestamp"`
}
