// Package store persists pipeline runs and their outputs. The core
// packages never import it; the pipeline hands results to a Store after
// each run.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/resilience"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// ErrNotFound is returned when a run or profile does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, label string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	SaveStage(ctx context.Context, runID string, stage model.StageResult) error
	ListStages(ctx context.Context, runID string) ([]model.StageResult, error)

	// Outputs
	SaveAssessments(ctx context.Context, runID string, assessments []*model.ContentQualityAssessment) error
	SaveContacts(ctx context.Context, runID string, contacts []model.ExtractedContact) error
	ListContacts(ctx context.Context, runID string) ([]model.ExtractedContact, error)
	SaveDuplicateGroups(ctx context.Context, runID string, groups []model.DuplicateGroup) error
	ListDuplicateGroups(ctx context.Context, runID string) ([]model.DuplicateGroup, error)

	// Freelancer profiles are keyed by contact and outlive runs so that
	// later byline batches can update them incrementally.
	SaveProfiles(ctx context.Context, profiles []*model.FreelancerProfile) error
	GetProfile(ctx context.Context, contactID string) (*model.FreelancerProfile, error)

	// Failures
	SaveFailures(ctx context.Context, failures []resilience.FailureRecord) error
	ListFailures(ctx context.Context, runID string) ([]resilience.FailureRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
