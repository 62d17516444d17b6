package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/names"
	"github.com/sells-group/contact-intel/internal/resilience"
)

func newTestScorer() *Scorer {
	return New(config.Defaults().Scoring, lexicon.Default(), WithConcurrency(2))
}

func strongContact() model.ExtractedContact {
	return model.ExtractedContact{
		ID:        "c1",
		SourceURL: "https://www.nytimes.com/2025/06/13/technology/ai.html",
		Name:      "Jane Smith",
		Email:     "jane.smith@nytimes.com",
		Title:     "Senior Reporter",
		Bio:       "Jane Smith is a reporter covering technology and policy. Previously an editor at Wired.",
		SocialProfiles: []model.SocialProfile{
			{Platform: "twitter", Handle: "@janesmith", Verified: true, Followers: 25000},
		},
		VerificationStatus: model.VerificationPending,
	}
}

func nytContent() *model.ParsedContent {
	return &model.ParsedContent{
		URL:      "https://www.nytimes.com/2025/06/13/technology/ai.html",
		Title:    "AI policy in Washington",
		Author:   "Jane Smith",
		Content:  "Lawmakers met on Tuesday.",
		Language: "en",
		Metadata: model.ContentMetadata{Domain: "nytimes.com"},
	}
}

func TestConfidence_StrongContact(t *testing.T) {
	s := newTestScorer()
	res := s.Confidence(strongContact(), ConfidenceContext{Content: nytContent(), SourceCredibility: 1.0, ContentFreshness: 0.9})

	assert.Equal(t, 1.0, res.Factors[FactorNameClarity])
	assert.Equal(t, 1.0, res.Factors[FactorEmailPresence])
	assert.Equal(t, 1.0, res.Factors[FactorTitleRelevance])
	assert.InDelta(t, 0.9, res.Factors[FactorBioCompleteness], 0.0001)
	assert.InDelta(t, 0.6667, res.Factors[FactorSocialVerification], 0.0001)
	assert.InDelta(t, 0.935, res.Score, 0.001)
	assert.Len(t, res.Reasoning, 6)
	assert.Empty(t, res.Recommendations)
}

func TestConfidence_PlaceholderName(t *testing.T) {
	s := newTestScorer()
	res := s.Confidence(model.ExtractedContact{Name: "test"}, ConfidenceContext{SourceCredibility: 0.5})

	assert.Equal(t, 0.0, res.Factors[FactorNameClarity])
	assert.InDelta(t, 0.05, res.Score, 0.0001)
	assert.Contains(t, res.Recommendations, "verify the contact's full name")
	assert.Contains(t, res.Recommendations, "find a professional email address")
}

func TestNameClarity(t *testing.T) {
	s := newTestScorer()
	tests := []struct {
		name  string
		input model.ExtractedContact
		want  float64
	}{
		{"two part", model.ExtractedContact{Name: "Jane Smith"}, 0.8},
		{"email agrees", model.ExtractedContact{Name: "Jane Smith", Email: "jsmith@example.com"}, 1.0},
		{"three part", model.ExtractedContact{Name: "Ana Maria Lopez"}, 0.7},
		{"honorific and suffix", model.ExtractedContact{Name: "Mr. John Smith Jr."}, 0.7},
		{"repeated characters", model.ExtractedContact{Name: "Aaaaa Bbbb"}, 0.5},
		{"digits", model.ExtractedContact{Name: "12345"}, 0.0},
		{"lowercase", model.ExtractedContact{Name: "jane smith"}, 0.6},
		{"empty", model.ExtractedContact{}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.nameClarity(tt.input), 0.0001)
		})
	}
}

func TestEmailPresence(t *testing.T) {
	s := newTestScorer()
	tests := []struct {
		email, outlet string
		want          float64
	}{
		{"", "nytimes.com", 0},
		{"not-an-email", "nytimes.com", 0.2},
		{"jane@gmail.com", "nytimes.com", 0.6},
		{"jane@forbes.com", "nytimes.com", 0.8},
		{"jane@nytimes.com", "nytimes.com", 1.0},
		{"jane@news.nytimes.com", "nytimes.com", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.emailPresence(tt.email, tt.outlet), 0.0001)
		})
	}
}

func TestTitleAndBio(t *testing.T) {
	s := newTestScorer()
	assert.Equal(t, 0.0, s.titleRelevance(""))
	assert.InDelta(t, 0.3, s.titleRelevance("Marketing Manager"), 0.0001)
	assert.InDelta(t, 0.7, s.titleRelevance("Writer"), 0.0001)
	assert.InDelta(t, 1.0, s.titleRelevance("Managing Editor"), 0.0001)

	assert.Equal(t, 0.0, s.bioCompleteness(""))
	assert.InDelta(t, 0.25, s.bioCompleteness("Short bio."), 0.0001)
	assert.InDelta(t, 0.5, s.bioCompleteness("Enjoys hiking, cooking and long walks along the river on weekends."), 0.0001)
}

func TestSocialVerification(t *testing.T) {
	assert.Equal(t, 0.0, socialVerification(nil))
	assert.InDelta(t, 0.5, socialVerification([]model.SocialProfile{
		{Platform: "twitter"}, {Platform: "linkedin"}, {Platform: "mastodon"}, {Platform: "bluesky"},
	}), 0.0001)
	assert.InDelta(t, 0.2667, socialVerification([]model.SocialProfile{{Platform: "twitter", Followers: 1500}}), 0.0001)
}

func TestQuality_StrongContact(t *testing.T) {
	s := newTestScorer()
	res := s.Quality(strongContact(), QualityContext{SourceCredibility: 1.0, ContentFreshness: 0.9, ConsistencyScore: -1})

	assert.Equal(t, 1.0, res.Factors[FactorInformationConsistency])
	assert.Equal(t, 1.0, res.Factors[FactorContactCompleteness])
	assert.Equal(t, 0.7, res.Factors[FactorVerificationStatus])
	assert.InDelta(t, 0.935, res.Score, 0.0001)
	assert.Equal(t, []string{"complete manual verification"}, res.ImprovementSuggestions)
}

func TestQuality_VerificationMapping(t *testing.T) {
	s := newTestScorer()
	tests := []struct {
		status model.VerificationStatus
		want   float64
	}{
		{model.VerificationConfirmed, 1.0},
		{model.VerificationPending, 0.7},
		{model.VerificationManualReview, 0.4},
		{model.VerificationRejected, 0.1},
		{"", 0.7},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			res := s.Quality(model.ExtractedContact{VerificationStatus: tt.status}, QualityContext{ConsistencyScore: 0.5})
			assert.Equal(t, tt.want, res.Factors[FactorVerificationStatus])
		})
	}
}

func TestQuality_ExplicitConsistencyAndSuggestions(t *testing.T) {
	s := newTestScorer()
	c := model.ExtractedContact{Name: "Jane Smith", Email: "jane@nytimes.com", VerificationStatus: model.VerificationConfirmed}

	res := s.Quality(c, QualityContext{SourceCredibility: 0.3, ContentFreshness: 0.2, ConsistencyScore: 0.8})

	assert.Equal(t, 0.8, res.Factors[FactorInformationConsistency])
	assert.Equal(t, 0.4, res.Factors[FactorContactCompleteness])
	// .25*.3 + .2*.2 + .2*.8 + .2*.4 + .15*1
	assert.InDelta(t, 0.505, res.Score, 0.0001)
	assert.Equal(t, []string{
		"add title",
		"add bio",
		"add social profiles",
		"confirm details against a more credible source",
		"refresh from recently published content",
	}, res.ImprovementSuggestions)
}

func TestConsistency(t *testing.T) {
	s := newTestScorer()
	assert.Equal(t, 0.5, s.Consistency(model.ExtractedContact{Name: "Jane Smith"}))
	assert.Equal(t, 0.0, s.Consistency(model.ExtractedContact{Name: "Jane Smith", Email: "bob@example.com"}))
	assert.Equal(t, 1.0, s.Consistency(strongContact()))
	assert.InDelta(t, 0.5, s.Consistency(model.ExtractedContact{
		Name:           "Jane Smith",
		Email:          "jsmith@example.com",
		SocialProfiles: []model.SocialProfile{{Platform: "twitter", Handle: "@newsbot99"}},
	}), 0.0001)
}

func TestRelevance(t *testing.T) {
	s := newTestScorer()

	assert.Equal(t, 0.5, s.Relevance(model.ExtractedContact{Name: "Jane Smith"}, nil, nil))
	assert.Equal(t, 1.0, s.Relevance(strongContact(), nytContent(), nil))

	c := model.ExtractedContact{
		Name:      "Jane Smith",
		Title:     "Reporter",
		Bio:       "Covers fintech and banking.",
		SourceURL: "https://www.nytimes.com/x",
	}
	content := &model.ParsedContent{
		URL:      "https://www.nytimes.com/x",
		Author:   "Someone Else",
		Content:  "Article body",
		Language: "en-US",
	}
	assert.InDelta(t, 0.75, s.Relevance(c, content, nil), 0.0001)

	target := &TargetCriteria{Beats: []string{"fintech"}, Outlets: []string{"nytimes.com"}, Languages: []string{"en"}}
	assert.Equal(t, 1.0, s.Relevance(c, content, target))

	miss := &TargetCriteria{Beats: []string{"sports"}, Outlets: []string{"wsj.com"}, Languages: []string{"de"}}
	assert.InDelta(t, 0.75, s.Relevance(c, content, miss), 0.0001)
}

func TestRelevance_EmailInContent(t *testing.T) {
	s := newTestScorer()
	c := model.ExtractedContact{Name: "Pat Lee", Email: "pat@example.org"}
	content := &model.ParsedContent{Content: "Send tips to PAT@example.org today."}
	assert.InDelta(t, 0.6, s.Relevance(c, content, nil), 0.0001)
}

func TestDeriveStatus(t *testing.T) {
	s := newTestScorer()
	tests := []struct {
		current    model.VerificationStatus
		confidence float64
		want       model.VerificationStatus
	}{
		{model.VerificationPending, 0.9, model.VerificationConfirmed},
		{model.VerificationPending, 0.85, model.VerificationConfirmed},
		{model.VerificationPending, 0.6, model.VerificationPending},
		{model.VerificationPending, 0.4, model.VerificationManualReview},
		{model.VerificationPending, 0.1, model.VerificationRejected},
		{model.VerificationRejected, 0.99, model.VerificationRejected},
		{model.VerificationConfirmed, 0.1, model.VerificationConfirmed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.DeriveStatus(tt.current, tt.confidence), "%s @ %.2f", tt.current, tt.confidence)
	}
}

func TestScoreContact(t *testing.T) {
	s := newTestScorer()
	in := Input{
		Contact:    strongContact(),
		Content:    nytContent(),
		Assessment: &model.ContentQualityAssessment{Credibility: 1.0, Freshness: 0.9},
	}

	out, err := s.ScoreContact(in)
	require.NoError(t, err)

	assert.InDelta(t, 0.935, out.ConfidenceScore, 0.001)
	assert.InDelta(t, 0.935, out.QualityScore, 0.001)
	assert.Equal(t, 1.0, out.RelevanceScore)
	assert.Equal(t, model.VerificationConfirmed, out.VerificationStatus)
	assert.Len(t, out.Metadata.ConfidenceFactors, 6)
	assert.Len(t, out.Metadata.QualityFactors, 5)

	// input is not mutated
	assert.Equal(t, 0.0, in.Contact.ConfidenceScore)
	assert.Equal(t, model.VerificationPending, in.Contact.VerificationStatus)
}

func TestScoreContact_StatusDerivation(t *testing.T) {
	s := newTestScorer()

	rejected, err := s.ScoreContact(Input{Contact: model.ExtractedContact{ID: "x", Name: "test"}})
	require.NoError(t, err)
	assert.Equal(t, model.VerificationRejected, rejected.VerificationStatus)

	review, err := s.ScoreContact(Input{Contact: model.ExtractedContact{ID: "y", Name: "Jane Smith", Title: "Writer"}})
	require.NoError(t, err)
	assert.InDelta(t, 0.355, review.ConfidenceScore, 0.0001)
	assert.Equal(t, model.VerificationManualReview, review.VerificationStatus)
}

func TestScoreContact_ConsistencyOverride(t *testing.T) {
	s := newTestScorer()
	v := 0.0
	out, err := s.ScoreContact(Input{Contact: strongContact(), ConsistencyScore: &v})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Metadata.QualityFactors[FactorInformationConsistency])
}

func TestScoreContact_BadSourceURL(t *testing.T) {
	s := newTestScorer()
	c := strongContact()
	c.SourceURL = "http://[::1"

	_, err := s.ScoreContact(Input{Contact: c})
	require.Error(t, err)
	var se *resilience.ScoringError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "c1", se.ContactID)
}

func TestScoreMany(t *testing.T) {
	s := newTestScorer()
	bad := strongContact()
	bad.ID = "bad"
	bad.SourceURL = "http://[::1"
	second := strongContact()
	second.ID = "c2"

	out, failures := s.ScoreMany(context.Background(), []Input{
		{Contact: strongContact()},
		{Contact: bad},
		{Contact: second},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "c1", out[0].ID)
	assert.Equal(t, "c2", out[1].ID)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].Key)

	for _, c := range out {
		for _, v := range []float64{c.ConfidenceScore, c.QualityScore, c.RelevanceScore} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestEmailMatchesName_NonASCIIInitial(t *testing.T) {
	p := names.Parsed{Tokens: []string{"łukasz", "o"}}
	assert.True(t, emailMatchesName("ło@example.pl", p))
	assert.False(t, emailMatchesName("lo@example.pl", p))
	assert.True(t, emailMatchesName("jsmith@example.com", names.Parsed{Tokens: []string{"jan", "smith"}}))
}
