package report

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/store"
)

// Snapshot summarizes recent runs.
type Snapshot struct {
	Runs        int `json:"runs"`
	Complete    int `json:"complete"`
	Failed      int `json:"failed"`
	Interrupted int `json:"interrupted"`
	InFlight    int `json:"in_flight"`

	FailRate          float64 `json:"fail_rate"`
	AvgSuccessRate    float64 `json:"avg_success_rate"`
	AvgDuplicateRate  float64 `json:"avg_duplicate_rate"`
	AvgConfidence     float64 `json:"avg_confidence"`
	TotalContacts     int     `json:"total_contacts"`
	TotalFreelancers  int     `json:"total_freelancers"`
	TotalItemFailures int     `json:"total_item_failures"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers run metrics from the store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a collector. now defaults to time.Now.
func NewCollector(runs RunLister, now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{runs: runs, now: now}
}

// Collect summarizes runs created within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "report: list runs")
	}

	snap.Runs = len(runs)
	var success, dupRate, conf float64
	withStats := 0
	for _, r := range runs {
		switch {
		case r.Status == model.RunStatusComplete:
			snap.Complete++
		case r.Status == model.RunStatusFailed:
			snap.Failed++
		case r.Status == model.RunStatusInterrupted:
			snap.Interrupted++
		case !r.Status.Terminal():
			snap.InFlight++
		}
		if r.Stats == nil {
			continue
		}
		withStats++
		success += r.Stats.SuccessRate
		dupRate += r.Stats.DuplicateRate
		conf += r.Stats.MeanConfidence
		snap.TotalContacts += r.Stats.Contacts
		snap.TotalFreelancers += r.Stats.Freelancers
		snap.TotalItemFailures += r.Stats.Failures
	}

	if finished := snap.Complete + snap.Failed + snap.Interrupted; finished > 0 {
		snap.FailRate = model.Round4(float64(snap.Failed+snap.Interrupted) / float64(finished))
	}
	snap.AvgSuccessRate = mean(success, withStats)
	snap.AvgDuplicateRate = mean(dupRate, withStats)
	snap.AvgConfidence = mean(conf, withStats)
	return snap, nil
}
