package entity

import "time"

// BatchJobStatus is the lifecycle state of a batch regeneration job.
type BatchJobStatus string

const (
	BatchRunning   BatchJobStatus = "running"
	BatchCompleted BatchJobStatus = "completed"
	BatchFailed    BatchJobStatus = "failed"
	BatchCancelled BatchJobStatus = "cancelled"
)

// BatchItemResult records the outcome of one item in a batch run.
type BatchItemResult struct {
	ItemID string `json:"item_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// BatchJob is a resumable bulk regeneration job. Cursor and results are
// persisted after every item so an interrupted run continues where it
// stopped.
type BatchJob struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Status     BatchJobStatus    `json:"status"`
	Cursor     int               `json:"cursor"`
	Total      int               `json:"total"`
	Processed  int               `json:"processed"`
	Results    []BatchItemResult `json:"results"`
	StartedAt  time.Time         `json:"started_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}
