package model

import "time"

// WorkerState is the coordinator-side lifecycle state of a worker.
type WorkerState string

const (
	StateIdle       WorkerState = "idle"
	StateProcessing WorkerState = "processing"
	StateStopped    WorkerState = "stopped"
	StateError      WorkerState = "error"
	StateRemoving   WorkerState = "removing"
)

// Valid reports whether s is one of the known worker states.
func (s WorkerState) Valid() bool {
	switch s {
	case StateIdle, StateProcessing, StateStopped, StateError, StateRemoving:
		return true
	}
	return false
}

// Active reports whether a worker in state s may claim documents.
func (s WorkerState) Active() bool {
	switch s {
	case StateStopped, StateError, StateRemoving:
		return false
	}
	return true
}

// Control commands piggy-backed on heartbeat responses.
const (
	CommandShutdown = "shutdown"
	CommandStop     = "stop"
)

// Document is a unit of work: a file path plus an optional schema name,
// assigned a unique id at enqueue time. A document id appears in at most
// one of the pending queue and the processing set at any instant.
type Document struct {
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	SchemaName string  `json:"schema_name,omitempty"`
	EnqueuedAt float64 `json:"enqueued_at"`
}

// Worker is the coordinator's record of a registered worker. The
// coordinator is the sole mutator; workers only cache their own id.
type Worker struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	APIURL             string      `json:"api_url"`
	Model              string      `json:"model"`
	APIKey             string      `json:"api_key,omitempty"`
	Status             WorkerState `json:"status"`
	RegisteredAt       float64     `json:"registered_at"`
	LastHeartbeat      float64     `json:"last_heartbeat"`
	CurrentDocument    string      `json:"current_document,omitempty"`
	ProcessedDocuments int64       `json:"processed_documents"`
	Errors             int64       `json:"errors"`
	ProcessID          string      `json:"process_id,omitempty"`
}

// Schema is a named JSON object consumed by the extractor.
type Schema struct {
	Name      string         `json:"name"`
	Content   map[string]any `json:"content"`
	CreatedAt float64        `json:"created_at"`
}

// Now returns the current wall time as unix seconds, the timestamp
// format used throughout the persisted state.
func Now() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}
