package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/pipeline"
	"github.com/sells-group/contact-intel/internal/resilience"
)

func TestRunResult_JSONRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	out := &pipeline.Output{
		RunID:    "run-1",
		Status:   model.RunStatusComplete,
		Counts:   pipeline.Counts{Contents: 1, Contacts: 2},
		Contacts: []model.ExtractedContact{{ID: "c1", ConfidenceScore: 0.9}},
		Failures: []*resilience.BatchItemError{{Stage: "score", Index: 1, Key: "c2", Err: assert.AnError}},
	}

	data, err := json.Marshal(runResult{Output: out, Failures: out.FailureRecords(now)})
	require.NoError(t, err)

	var got runResult
	require.NoError(t, json.Unmarshal(data, &got))
	require.NotNil(t, got.Output)
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "c2", got.Failures[0].ItemKey)
	assert.Equal(t, "score", got.Failures[0].Stage)
}

func TestReportInputFromResult(t *testing.T) {
	res := runResult{
		Output: &pipeline.Output{
			Counts:   pipeline.Counts{Contents: 2, Contacts: 3},
			Contacts: []model.ExtractedContact{{ID: "c1", ConfidenceScore: 0.8}, {ID: "c2", ConfidenceScore: 0.4}},
		},
		Failures: []resilience.FailureRecord{{Stage: "score", ItemKey: "c3", Error: "bad source url"}},
	}

	in := reportInputFromResult(res)
	assert.Equal(t, 3, in.Contacts)
	require.Len(t, in.Failures, 1)
	assert.Equal(t, "c3", in.Failures[0].Key)
	assert.Contains(t, in.Failures[0].Error(), "bad source url")

	empty := reportInputFromResult(runResult{})
	assert.Empty(t, empty.Scored)
}

func TestLoadStoredRun(t *testing.T) {
	useTestConfig(t)
	ctx := context.Background()

	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, "stored")
	require.NoError(t, err)
	contacts := []model.ExtractedContact{
		{ID: "c1", Name: "Jane Smith", ConfidenceScore: 0.9},
		{ID: "c2", Name: "J. Smith", ConfidenceScore: 0.6, IsDuplicate: true},
	}
	require.NoError(t, st.SaveContacts(ctx, run.ID, contacts))
	require.NoError(t, st.SaveDuplicateGroups(ctx, run.ID, []model.DuplicateGroup{
		{ID: "g1", Contacts: []string{"c1", "c2"}, SelectedContact: "c1", DuplicateType: model.DuplicateName},
	}))
	require.NoError(t, st.SaveProfiles(ctx, []*model.FreelancerProfile{{ContactID: "c1", IsFreelancer: true}}))
	stats := &model.RunStats{Contacts: 2, Scored: 2, SuccessRate: 1}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete, stats, ""))

	in, got, err := loadStoredRun(ctx, st, run.ID)
	require.NoError(t, err)
	assert.Equal(t, *stats, got)
	assert.Len(t, in.Scored, 2)
	require.NotNil(t, in.Detection)
	assert.Len(t, in.Detection.UniqueContacts, 1)
	assert.Len(t, in.Detection.Duplicates, 1)
	assert.Len(t, in.Detection.DuplicateGroups, 1)
	require.Len(t, in.Profiles, 1)
	assert.True(t, in.Profiles[0].IsFreelancer)

	_, _, err = loadStoredRun(ctx, st, "missing")
	assert.Error(t, err)
}

func TestFormatStats(t *testing.T) {
	var buf bytes.Buffer
	formatStats(&buf, model.RunStats{Contacts: 4, SuccessRate: 0.75})

	out := buf.String()
	assert.Contains(t, out, "contacts:")
	assert.Contains(t, out, "success rate:")
	assert.Contains(t, out, "0.7500")
}
