package dedupe

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
)

func newTestDetector() *Detector {
	return New(config.Defaults().Dedupe, lexicon.Default())
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"J.Doe+news@NYT.com", "jdoe@nyt.com"},
		{"john_doe@googlemail.com", "johndoe@gmail.com"},
		{" jdoe@nyt.com ", "jdoe@nyt.com"},
		{"not-an-email", "not-an-email"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEmail(tt.in), tt.in)
	}
}

func TestSimilarity_EmailAlias(t *testing.T) {
	d := newTestDetector()
	a := model.ExtractedContact{ID: "a", Name: "Jonathan Doe", Email: "j.doe@nyt.com"}
	b := model.ExtractedContact{ID: "b", Name: "J. Doe", Email: "jdoe@nyt.com"}

	sim := d.Similarity(a, b)
	assert.Equal(t, 1.0, sim.Email)
	assert.GreaterOrEqual(t, sim.Overall, 0.95)

	res := d.Detect([]model.ExtractedContact{a, b})
	require.Len(t, res.DuplicateGroups, 1)
	assert.Equal(t, model.DuplicateEmail, res.DuplicateGroups[0].DuplicateType)
	assert.Equal(t, 1, res.TotalDuplicates)
	assert.Equal(t, 0.5, res.DuplicateRate)
}

func TestSimilarity_Symmetric(t *testing.T) {
	d := newTestDetector()
	contacts := []model.ExtractedContact{
		{ID: "1", Name: "William Jones", Title: "Senior Editor", SourceURL: "https://www.wsj.com/a"},
		{ID: "2", Name: "Bill Jones", Title: "Editor", Email: "bjones@wsj.com", SourceURL: "https://wsj.com/b"},
		{ID: "3", Name: "J. Public", Title: "Reporter", SourceURL: "https://nytimes.com/x"},
		{ID: "4", Name: "John Q. Public", Title: "reporter", Email: "jpublic@gmail.com"},
		{ID: "5", Name: "Smith, Jane", Title: "Technology Reporter, Business", SourceURL: "https://bbc.co.uk/news"},
		{ID: "6", Name: "Jane Smith", Title: "Business Reporter", Email: "jane.smith+pr@bbc.com", SourceURL: "https://www.bbc.com/news"},
		{ID: "7", Name: "José García", Email: "JGARCIA@example.com"},
		{ID: "8"},
	}
	for i := range contacts {
		for j := range contacts {
			ab := d.Similarity(contacts[i], contacts[j])
			ba := d.Similarity(contacts[j], contacts[i])
			assert.Equal(t, ab, ba, "%s vs %s", contacts[i].ID, contacts[j].ID)
			for _, v := range []float64{ab.Overall, ab.Email, ab.Name, ab.Title, ab.Outlet} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	d := newTestDetector()
	tests := []struct {
		a, b string
		want float64
	}{
		{"Jane Smith", "Jane Smith", 1.0},
		{"Smith, Jane", "Jane Smith", 1.0},
		{"Smith Jane", "Jane Smith", 0.95},
		{"John Q. Public", "John Public", 0.95},
		{"William Jones", "Bill Jones", 0.9},
		{"J. Public", "John Public", 0.85},
		{"José García", "Jose Garcia", 1.0},
		{"Dr. Jane Smith", "Jane Smith", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			sim := d.Similarity(model.ExtractedContact{Name: tt.a}, model.ExtractedContact{Name: tt.b})
			assert.InDelta(t, tt.want, sim.Name, 0.0001)
		})
	}

	low := d.Similarity(model.ExtractedContact{Name: "Alice Brown"}, model.ExtractedContact{Name: "Robert Green"})
	assert.Less(t, low.Name, 0.5)
	assert.Equal(t, 0.0, d.Similarity(model.ExtractedContact{Name: "Jane"}, model.ExtractedContact{}).Name)
}

func TestTitleSimilarity(t *testing.T) {
	d := newTestDetector()
	tests := []struct {
		a, b string
		want float64
	}{
		{"Editor", "editor", 1.0},
		{"Technology Reporter", "Reporter, Technology", 0.9},
		{"Senior Editor", "Editor", 0.8},
		{"Business Reporter", "Tech Reporter", 0.2333},
		{"Editor", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, d.titleSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}

func TestOutletSimilarity(t *testing.T) {
	d := newTestDetector()
	assert.Equal(t, 1.0, d.outletSimilarity("nytimes.com", "nytimes.com"))
	assert.Equal(t, 0.9, d.outletSimilarity("nytimes.com", "cooking.nytimes.com"))
	assert.Equal(t, 0.85, d.outletSimilarity("wsj.com", "wallstreetjournal.com"))
	assert.Equal(t, 0.85, d.outletSimilarity("bbc.co.uk", "bbc.com"))
	assert.Equal(t, 0.0, d.outletSimilarity("nytimes.com", "wsj.com"))
	assert.Equal(t, 0.0, d.outletSimilarity("", "wsj.com"))

	assert.Equal(t, "nytimes.com", d.outletDomain(model.ExtractedContact{SourceURL: "https://www.nytimes.com/a"}))
	assert.Equal(t, "nytimes.com", d.outletDomain(model.ExtractedContact{Email: "jane@nytimes.com"}))
	assert.Equal(t, "", d.outletDomain(model.ExtractedContact{Email: "jane@gmail.com"}))
}

func TestDetect_NameDuplicate(t *testing.T) {
	d := newTestDetector()
	a := model.ExtractedContact{ID: "a", Name: "William Jones", Title: "Senior Editor", SourceURL: "https://www.wsj.com/a", ConfidenceScore: 0.6}
	b := model.ExtractedContact{ID: "b", Name: "Bill Jones", Title: "Editor", Email: "bjones@wsj.com", SourceURL: "https://wsj.com/b", ConfidenceScore: 0.8}

	res := d.Detect([]model.ExtractedContact{a, b})
	require.Len(t, res.DuplicateGroups, 1)
	g := res.DuplicateGroups[0]
	assert.Equal(t, model.DuplicateName, g.DuplicateType)
	assert.Equal(t, "b", g.SelectedContact)
	assert.InDelta(t, 0.9083, g.SimilarityScore, 0.0001)

	require.Len(t, res.UniqueContacts, 1)
	merged := res.UniqueContacts[0]
	assert.Equal(t, "b", merged.ID)
	assert.Equal(t, "Editor", merged.Title)
	assert.Equal(t, 0.8, merged.ConfidenceScore)

	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, "a", res.Duplicates[0].ID)
	assert.True(t, res.Duplicates[0].IsDuplicate)
}

func TestDetect_OutletDuplicate(t *testing.T) {
	d := newTestDetector()
	a := model.ExtractedContact{ID: "a", Name: "J. Public", Title: "Reporter", SourceURL: "https://nytimes.com/x"}
	b := model.ExtractedContact{ID: "b", Name: "John Public", Title: "Reporter", SourceURL: "https://www.nytimes.com/y"}

	res := d.Detect([]model.ExtractedContact{a, b})
	require.Len(t, res.DuplicateGroups, 1)
	assert.Equal(t, model.DuplicateOutlet, res.DuplicateGroups[0].DuplicateType)
}

func TestDetect_DifferentEmailsNotGrouped(t *testing.T) {
	d := newTestDetector()
	a := model.ExtractedContact{ID: "a", Name: "Jane Smith", Title: "Reporter", Email: "jane@nytimes.com", SourceURL: "https://nytimes.com/x"}
	b := model.ExtractedContact{ID: "b", Name: "Jane Smith", Title: "Reporter", Email: "jane.smith@wsj.com", SourceURL: "https://nytimes.com/y"}

	res := d.Detect([]model.ExtractedContact{a, b})
	assert.Empty(t, res.DuplicateGroups)
	assert.Len(t, res.UniqueContacts, 2)
	assert.Equal(t, 0.0, res.DuplicateRate)
}

// chain returns A~B by email and B~C by name, while A and C are dissimilar.
func chain() (a, b, c model.ExtractedContact) {
	a = model.ExtractedContact{ID: "a", Name: "Pat Lee", Email: "pat@a.com", Title: "Chef", SourceURL: "https://food.example.org/x"}
	b = model.ExtractedContact{ID: "b", Name: "Zed Quorn", Email: "pat@a.com", Title: "Reporter", SourceURL: "https://news.example.com/z"}
	c = model.ExtractedContact{ID: "c", Name: "Zed Quorn", Title: "Reporter", SourceURL: "https://news.example.com/y"}
	return a, b, c
}

func TestDetect_CompleteLinkRejectsChaining(t *testing.T) {
	d := newTestDetector()
	a, b, c := chain()

	require.GreaterOrEqual(t, d.Similarity(a, b).Overall, 0.8)
	require.GreaterOrEqual(t, d.Similarity(b, c).Overall, 0.8)
	require.Less(t, d.Similarity(a, c).Overall, 0.6)

	res := d.Detect([]model.ExtractedContact{a, b, c})
	require.Len(t, res.DuplicateGroups, 1)
	g := res.DuplicateGroups[0]
	assert.Equal(t, []string{"b", "c"}, g.Contacts)
	assert.Equal(t, "b", g.SelectedContact)
	assert.Equal(t, model.DuplicateName, g.DuplicateType)
	assert.Len(t, res.UniqueContacts, 2)
}

func TestDetect_IndependentOfInputOrder(t *testing.T) {
	d := newTestDetector()
	a, b, c := chain()
	orders := [][]model.ExtractedContact{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}

	first := d.Detect(orders[0])
	require.Len(t, first.DuplicateGroups, 1)
	for _, in := range orders[1:] {
		res := d.Detect(in)
		require.Len(t, res.DuplicateGroups, 1)
		assert.Equal(t, first.DuplicateGroups[0], res.DuplicateGroups[0])
	}

	_, err := uuid.Parse(first.DuplicateGroups[0].ID)
	assert.NoError(t, err)
}

func TestDetect_BucketedMatchesFullScan(t *testing.T) {
	full := newTestDetector()
	cfg := config.Defaults().Dedupe
	cfg.MaxPairwise = 0
	bucketed := New(cfg, lexicon.Default())

	a, b, c := chain()
	contacts := []model.ExtractedContact{
		a, b, c,
		{ID: "d", Name: "Jonathan Doe", Email: "j.doe@nyt.com"},
		{ID: "e", Name: "J. Doe", Email: "jdoe+tips@nyt.com"},
		{ID: "f", Name: "Unrelated Person", Email: "someone@else.org"},
	}

	want := full.Detect(contacts)
	got := bucketed.Detect(contacts)
	assert.Equal(t, want.DuplicateGroups, got.DuplicateGroups)
	assert.Equal(t, 2, got.TotalDuplicates)
}

func TestDetect_ThresholdIsExclusive(t *testing.T) {
	a := model.ExtractedContact{ID: "a", Name: "Maria Garcia", Title: "Reporter", SourceURL: "https://news.example.com/1"}
	b := model.ExtractedContact{ID: "b", Name: "Maria Garcia", Title: "Senior Reporter", SourceURL: "https://news.example.com/2"}
	sim := newTestDetector().Similarity(a, b).Overall
	require.Greater(t, sim, 0.0)
	require.Less(t, sim, 1.0)

	cfg := config.Defaults().Dedupe
	cfg.LinkThreshold = 0
	cfg.Threshold = sim
	res := New(cfg, lexicon.Default()).Detect([]model.ExtractedContact{a, b})
	assert.Empty(t, res.DuplicateGroups)
	assert.Len(t, res.UniqueContacts, 2)

	cfg.Threshold = sim - 0.01
	res = New(cfg, lexicon.Default()).Detect([]model.ExtractedContact{a, b})
	require.Len(t, res.DuplicateGroups, 1)
	assert.Len(t, res.UniqueContacts, 1)
	assert.Len(t, res.Duplicates, 1)
}

func TestDetect_UniqueContactsFollowInputOrder(t *testing.T) {
	d := newTestDetector()
	x := model.ExtractedContact{ID: "x", Name: "Solo Writer", Email: "solo@example.com"}
	a := model.ExtractedContact{ID: "a", Name: "Jane Smith", Email: "jane@nytimes.com", ConfidenceScore: 0.9}
	b := model.ExtractedContact{ID: "b", Name: "Jane Smith", Email: "JANE@nytimes.com", Bio: "Covers tech.", ConfidenceScore: 0.5}

	res := d.Detect([]model.ExtractedContact{x, b, a})
	require.Len(t, res.UniqueContacts, 2)
	assert.Equal(t, "x", res.UniqueContacts[0].ID)
	assert.Equal(t, "a", res.UniqueContacts[1].ID)
	assert.Equal(t, "Covers tech.", res.UniqueContacts[1].Bio)
	assert.InDelta(t, 1/3.0, res.DuplicateRate, 0.0001)
}

func TestDetect_Empty(t *testing.T) {
	res := newTestDetector().Detect(nil)
	assert.Empty(t, res.UniqueContacts)
	assert.Empty(t, res.DuplicateGroups)
	assert.Equal(t, 0.0, res.DuplicateRate)
}

func TestRanksBefore(t *testing.T) {
	early := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	tests := []struct {
		name string
		a, b model.ExtractedContact
		want bool
	}{
		{"confidence", model.ExtractedContact{ID: "z", ConfidenceScore: 0.9}, model.ExtractedContact{ID: "a", ConfidenceScore: 0.7}, true},
		{"quality", model.ExtractedContact{ID: "z", ConfidenceScore: 0.7, QualityScore: 0.6}, model.ExtractedContact{ID: "a", ConfidenceScore: 0.7, QualityScore: 0.5}, true},
		{"created", model.ExtractedContact{ID: "z", CreatedAt: early}, model.ExtractedContact{ID: "a", CreatedAt: late}, true},
		{"zero time last", model.ExtractedContact{ID: "a"}, model.ExtractedContact{ID: "z", CreatedAt: late}, false},
		{"id", model.ExtractedContact{ID: "a"}, model.ExtractedContact{ID: "b"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ranksBefore(tt.a, tt.b))
			assert.Equal(t, !tt.want, ranksBefore(tt.b, tt.a))
		})
	}
}

func TestMerge_BackfillsWithoutOverwriting(t *testing.T) {
	d := newTestDetector()
	base := model.ExtractedContact{
		ID: "a", Name: "Jane Smith", Title: "Senior Editor", ConfidenceScore: 0.9,
		SocialProfiles: []model.SocialProfile{{Platform: "twitter", Handle: "@jsmith"}},
		Metadata:       model.ContactMetadata{ConfidenceFactors: map[string]float64{"name_clarity": 1}},
	}
	other := model.ExtractedContact{
		ID: "b", Name: "J. Smith", Title: "Editor", Email: "jane@nytimes.com", Bio: "Covers policy.", ConfidenceScore: 0.4,
		SocialProfiles: []model.SocialProfile{
			{Platform: "Twitter", Handle: "jsmith", Followers: 1200, Verified: true},
			{Platform: "linkedin", URL: "https://linkedin.com/in/jsmith"},
		},
		Metadata: model.ContactMetadata{ConfidenceFactors: map[string]float64{"name_clarity": 0.2, "bio_completeness": 0.5}},
	}
	group := model.DuplicateGroup{ID: "g", Contacts: []string{"a", "b"}, SelectedContact: "a"}

	merged, err := d.Merge(group, []model.ExtractedContact{base, other})
	require.NoError(t, err)

	assert.Equal(t, "a", merged.ID)
	assert.Equal(t, "Jane Smith", merged.Name)
	assert.Equal(t, "Senior Editor", merged.Title)
	assert.Equal(t, "jane@nytimes.com", merged.Email)
	assert.Equal(t, "Covers policy.", merged.Bio)
	assert.Equal(t, 0.9, merged.ConfidenceScore)
	require.Len(t, merged.SocialProfiles, 2)
	assert.Equal(t, 1200, merged.SocialProfiles[0].Followers)
	assert.True(t, merged.SocialProfiles[0].Verified)
	assert.Equal(t, 1.0, merged.Metadata.ConfidenceFactors["name_clarity"])
	assert.Equal(t, 0.5, merged.Metadata.ConfidenceFactors["bio_completeness"])

	// inputs untouched
	assert.Len(t, base.SocialProfiles, 1)
	assert.Len(t, base.Metadata.ConfidenceFactors, 1)
}

func TestMerge_NeverDropsScalarFields(t *testing.T) {
	d := newTestDetector()
	members := []model.ExtractedContact{
		{ID: "a", Name: "Jane Smith", ConfidenceScore: 0.9},
		{ID: "b", Title: "Reporter", ConfidenceScore: 0.5},
		{ID: "c", Email: "jane@x.com", ConfidenceScore: 0.4},
		{ID: "d", Bio: "Bio text.", SourceURL: "https://x.com", ConfidenceScore: 0.3},
	}
	group := model.DuplicateGroup{ID: "g", Contacts: []string{"a", "b", "c", "d"}, SelectedContact: "a"}

	merged, err := d.Merge(group, members)
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", merged.Name)
	assert.Equal(t, "Reporter", merged.Title)
	assert.Equal(t, "jane@x.com", merged.Email)
	assert.Equal(t, "Bio text.", merged.Bio)
	assert.Equal(t, "https://x.com", merged.SourceURL)
}

func TestMerge_Errors(t *testing.T) {
	d := newTestDetector()
	contacts := []model.ExtractedContact{{ID: "a"}, {ID: "b"}}

	_, err := d.Merge(model.DuplicateGroup{ID: "g", Contacts: []string{"a", "b"}, SelectedContact: "z"}, contacts)
	assert.Error(t, err)

	_, err = d.Merge(model.DuplicateGroup{ID: "g", Contacts: []string{"a", "q"}, SelectedContact: "q"}, contacts)
	assert.Error(t, err)

	_, err = d.MergeAll([]model.DuplicateGroup{{ID: "g", Contacts: []string{"a", "q"}, SelectedContact: "a"}}, contacts)
	assert.Error(t, err)

	merged, err := d.MergeAll([]model.DuplicateGroup{{ID: "g", Contacts: []string{"a", "b"}, SelectedContact: "b"}}, contacts)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "b", merged[0].ID)
}
