package resilience

import (
	"time"

	"github.com/google/uuid"
)

// FailureRecord is a persisted batch item failure, kept so that operators can
// inspect and re-run items that were excluded from a batch.
type FailureRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	ItemKey   string    `json:"item_key"`
	Error     string    `json:"error"`
	ErrorType string    `json:"error_type"` // "transient" or "permanent"
	CreatedAt time.Time `json:"created_at"`
}

// NewFailureRecord converts a batch item error into a FailureRecord.
func NewFailureRecord(runID string, e *BatchItemError, now time.Time) FailureRecord {
	return FailureRecord{
		ID:        uuid.New().String(),
		RunID:     runID,
		Stage:     e.Stage,
		ItemKey:   e.Key,
		Error:     e.Error(),
		ErrorType: ClassifyError(e.Err),
		CreatedAt: now.UTC(),
	}
}
