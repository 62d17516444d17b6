package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/store"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Batch.Concurrency = 4
	cfg.Pipeline.MinOverallScore = 0
	return cfg
}

func daysAgo(n int) time.Time { return testNow.Add(-time.Duration(n) * 24 * time.Hour) }

func sampleInput() Input {
	published := daysAgo(2)
	return Input{
		Label: "tech desk",
		Contents: []model.ParsedContent{
			{
				URL:         "https://www.nytimes.com/2025/06/13/technology/ai-chips.html",
				Title:       "Chip makers race to meet AI demand",
				Author:      "Jane Smith",
				Content:     "Jane Smith reports on technology for The New York Times. Contact her at jane.smith@nytimes.com.",
				PublishedAt: &published,
			},
			{URL: "http://[bad"},
		},
		Contacts: []model.ExtractedContact{
			{ID: "a", Name: "Jane Smith", Email: "jane.smith@nytimes.com", Title: "Technology Reporter",
				SourceURL: "https://www.nytimes.com/2025/06/13/technology/ai-chips.html", CreatedAt: daysAgo(1)},
			{ID: "b", Name: "Jane Smith", Email: "janesmith@nytimes.com",
				SourceURL: "https://www.nytimes.com/2025/06/13/technology/ai-chips.html", CreatedAt: daysAgo(1)},
			{ID: "c", Name: "Bob Jones", SourceURL: "http://[bad", CreatedAt: daysAgo(1)},
			{ID: "d", Name: "Ann Lee", Email: "ann.lee@gmail.com", Bio: "Freelance writer covering climate",
				SourceURL: "https://www.wired.com/story/heat", CreatedAt: daysAgo(1)},
		},
		Histories: map[string][]model.OutletHistory{
			"a": {{OutletID: "nyt", OutletName: "The New York Times", OutletDomain: "nytimes.com", Bylines: []model.Byline{
				{URL: "https://www.nytimes.com/1", PublishedAt: daysAgo(3)},
			}}},
			"b": {{OutletID: "nyt", OutletName: "The New York Times", OutletDomain: "nytimes.com", Bylines: []model.Byline{
				{URL: "https://www.nytimes.com/2", PublishedAt: daysAgo(10)},
			}}},
			"d": {
				{OutletID: "wired", OutletName: "Wired", OutletDomain: "wired.com", Bylines: []model.Byline{
					{URL: "https://www.wired.com/1", PublishedAt: daysAgo(5)},
				}},
				{OutletID: "verge", OutletName: "The Verge", OutletDomain: "theverge.com", Bylines: []model.Byline{
					{URL: "https://www.theverge.com/1", PublishedAt: daysAgo(20)},
				}},
			},
		},
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, st store.Store) *Pipeline {
	t.Helper()
	return New(cfg, lexicon.Default(), st, WithClock(func() time.Time { return testNow }))
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRun_WithoutStore(t *testing.T) {
	out, err := newTestPipeline(t, testConfig(), nil).Run(context.Background(), sampleInput())
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, model.RunStatusComplete, out.Status)
	assert.Equal(t, Counts{Contents: 2, Contacts: 4, Subjects: 2}, out.Counts)

	require.Len(t, out.Assessments, 1)
	assert.Empty(t, out.Gated)

	require.Len(t, out.Contacts, 3)
	assert.Equal(t, []string{"a", "b", "d"}, []string{out.Contacts[0].ID, out.Contacts[1].ID, out.Contacts[2].ID})

	require.Len(t, out.Detection.DuplicateGroups, 1)
	g := out.Detection.DuplicateGroups[0]
	assert.ElementsMatch(t, []string{"a", "b"}, g.Contacts)
	assert.Equal(t, model.DuplicateEmail, g.DuplicateType)
	assert.Len(t, out.Detection.UniqueContacts, 2)

	require.Len(t, out.Profiles, 2)
	var nyt *model.FreelancerProfile
	for _, p := range out.Profiles {
		if p.ContactID == g.SelectedContact {
			nyt = p
		}
	}
	require.NotNil(t, nyt, "merged contact should be analyzed")
	require.Len(t, nyt.Outlets, 1)
	assert.Equal(t, 2, nyt.Outlets[0].TotalBylines, "histories of merged duplicates are combined")

	require.Len(t, out.Failures, 2)
	assert.Equal(t, StageAssess, out.Failures[0].Stage)
	assert.Equal(t, StageScore, out.Failures[1].Stage)
	assert.Equal(t, "c", out.Failures[1].Key)

	assert.InDelta(t, 0.75, out.Stats.SuccessRate, 1e-9)
	assert.Equal(t, 1, out.Stats.DuplicateGroups)

	names := make([]string, len(out.Stages))
	for i, s := range out.Stages {
		names[i] = s.Name
	}
	assert.Equal(t, stageOrder, names)
	assert.Equal(t, model.StageSkipped, out.Stages[4].Status)
}

func TestRun_GatesLowScoringSources(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MinOverallScore = 1.01

	out, err := newTestPipeline(t, cfg, nil).Run(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.nytimes.com/2025/06/13/technology/ai-chips.html"}, out.Gated)
	assert.Len(t, out.Contacts, 3, "contacts from gated sources are still scored")
	assert.Equal(t, 1, out.Stats.Gated)
}

func TestRun_Persists(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	out, err := newTestPipeline(t, testConfig(), st).Run(ctx, sampleInput())
	require.NoError(t, err)

	run, err := st.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, "tech desk", run.Label)
	require.NotNil(t, run.Stats)
	assert.Equal(t, out.Stats.Scored, run.Stats.Scored)

	contacts, err := st.ListContacts(ctx, out.RunID)
	require.NoError(t, err)
	assert.Len(t, contacts, 3)
	dups := 0
	for _, c := range contacts {
		if c.IsDuplicate {
			dups++
		}
	}
	assert.Equal(t, 1, dups)

	groups, err := st.ListDuplicateGroups(ctx, out.RunID)
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	failures, err := st.ListFailures(ctx, out.RunID)
	require.NoError(t, err)
	assert.Len(t, failures, 2)

	stages, err := st.ListStages(ctx, out.RunID)
	require.NoError(t, err)
	assert.Len(t, stages, len(stageOrder))

	p, err := st.GetProfile(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, p.Outlets, 2)
}

type failingStore struct {
	store.Store
}

func (failingStore) SaveContacts(context.Context, string, []model.ExtractedContact) error {
	return errors.New("disk full")
}

func TestRun_PersistFailureMarksRunFailed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	out, err := newTestPipeline(t, testConfig(), failingStore{st}).Run(ctx, sampleInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: persist")
	assert.Equal(t, model.RunStatusFailed, out.Status)

	run, err := st.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "disk full")
}

func TestRun_CancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newTestPipeline(t, testConfig(), nil).Run(ctx, sampleInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "interrupted after assess")
	assert.Equal(t, model.RunStatusInterrupted, out.Status)

	require.Len(t, out.Stages, len(stageOrder))
	assert.Equal(t, model.StageComplete, out.Stages[0].Status)
	assert.Equal(t, 2, out.Stages[0].Failed)
	for _, s := range out.Stages[1:] {
		assert.Equal(t, model.StageSkipped, s.Status, s.Name)
	}
	assert.Empty(t, out.Contacts)
}

func TestRun_NoHistoriesSkipsFreelance(t *testing.T) {
	in := sampleInput()
	in.Histories = nil

	out, err := newTestPipeline(t, testConfig(), nil).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, out.Profiles)
	assert.Equal(t, model.StageSkipped, out.Stages[3].Status)
}

func TestFreelanceSubjects(t *testing.T) {
	d := model.DetectionResult{
		UniqueContacts: []model.ExtractedContact{{ID: "b", Name: "B"}, {ID: "z", Name: "Z"}, {ID: "q"}},
		DuplicateGroups: []model.DuplicateGroup{
			{Contacts: []string{"a", "b"}, SelectedContact: "b"},
		},
	}
	hist := map[string][]model.OutletHistory{
		"a": {{OutletID: "x"}},
		"b": {{OutletID: "y"}},
		"z": {{OutletID: "w"}},
	}

	subjects := freelanceSubjects(d, hist)
	require.Len(t, subjects, 2)
	assert.Equal(t, "b", subjects[0].Contact.ID)
	assert.Equal(t, []model.OutletHistory{{OutletID: "x"}, {OutletID: "y"}}, subjects[0].Histories)
	assert.Equal(t, "z", subjects[1].Contact.ID)

	assert.Nil(t, freelanceSubjects(d, nil))
}

func TestOutput_FailureRecords(t *testing.T) {
	out, err := newTestPipeline(t, testConfig(), nil).Run(context.Background(), sampleInput())
	require.NoError(t, err)

	recs := out.FailureRecords(testNow)
	require.Len(t, recs, 2)
	assert.Equal(t, out.RunID, recs[0].RunID)
	assert.Equal(t, "permanent", recs[0].ErrorType)
	assert.Equal(t, testNow, recs[0].CreatedAt)
}
