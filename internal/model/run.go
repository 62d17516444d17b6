package model

import "time"

// RunStatus is the state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusAssessing   RunStatus = "assessing"
	RunStatusScoring     RunStatus = "scoring"
	RunStatusDeduping    RunStatus = "deduplicating"
	RunStatusAnalyzing   RunStatus = "analyzing"
	RunStatusPersisting  RunStatus = "persisting"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed || s == RunStatusInterrupted
}

// Run is one pass of the pipeline over a batch of contents and contacts.
type Run struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	Status    RunStatus `json:"status"`
	Stats     *RunStats `json:"stats,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageStatus is the outcome of one pipeline stage.
type StageStatus string

const (
	StageRunning  StageStatus = "running"
	StageComplete StageStatus = "complete"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
)

// StageResult records how a stage went.
type StageResult struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Processed  int         `json:"processed"`
	Failed     int         `json:"failed"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// Histogram bucket bounds for confidence scores: [0,.2) [.2,.4) [.4,.6) [.6,.8) [.8,1].
const HistogramBuckets = 5

// RunStats aggregates a run's outputs.
type RunStats struct {
	Contents         int     `json:"contents"`
	Assessed         int     `json:"assessed"`
	Gated            int     `json:"gated"`
	Journalistic     int     `json:"journalistic"`
	MeanOverallScore float64 `json:"mean_overall_score"`
	MeanSpamScore    float64 `json:"mean_spam_score"`

	Contacts            int                        `json:"contacts"`
	Scored              int                        `json:"scored"`
	MeanConfidence      float64                    `json:"mean_confidence"`
	MeanQuality         float64                    `json:"mean_quality"`
	MeanRelevance       float64                    `json:"mean_relevance"`
	ConfidenceHistogram []int                      `json:"confidence_histogram"`
	StatusCounts        map[VerificationStatus]int `json:"status_counts"`

	UniqueContacts  int     `json:"unique_contacts"`
	DuplicateGroups int     `json:"duplicate_groups"`
	TotalDuplicates int     `json:"total_duplicates"`
	DuplicateRate   float64 `json:"duplicate_rate"`

	Profiles        int     `json:"profiles"`
	Freelancers     int     `json:"freelancers"`
	FreelancerShare float64 `json:"freelancer_share"`

	Failures    int     `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
}
