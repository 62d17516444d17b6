package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.42, Clamp01(0.42))
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.3333, Round4(1.0/3))
	assert.Equal(t, 0.6667, Round4(2.0/3))
}

func TestRunStatus_Terminal(t *testing.T) {
	for _, s := range []RunStatus{RunStatusComplete, RunStatusFailed, RunStatusInterrupted} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []RunStatus{RunStatusQueued, RunStatusAssessing, RunStatusScoring, RunStatusDeduping, RunStatusAnalyzing, RunStatusPersisting} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestExtractedContact_Clone(t *testing.T) {
	orig := ExtractedContact{
		ID:             "c1",
		SocialProfiles: []SocialProfile{{Platform: "twitter", Handle: "jane"}},
		Metadata: ContactMetadata{
			ConfidenceFactors: map[string]float64{"name_clarity": 1},
		},
	}

	c := orig.Clone()
	c.SocialProfiles[0].Handle = "other"
	c.Metadata.ConfidenceFactors["name_clarity"] = 0

	assert.Equal(t, "jane", orig.SocialProfiles[0].Handle)
	assert.Equal(t, 1.0, orig.Metadata.ConfidenceFactors["name_clarity"])
}

func TestContactFromExtracted(t *testing.T) {
	c := ContactFromExtracted(ExtractedContact{ID: "c1", Name: "Jane", Email: "jane@wired.com", ConfidenceScore: 0.9})
	assert.Equal(t, Contact{ID: "c1", Name: "Jane", Email: "jane@wired.com"}, c)
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "nytimes.com", EmailDomain("Jane@NYTimes.com"))
	assert.Equal(t, "", EmailDomain("jane"))
	assert.Equal(t, "", EmailDomain("jane@"))
}

func TestSocialProfile_Key(t *testing.T) {
	assert.Equal(t, "twitter:jane", SocialProfile{Platform: "Twitter", Handle: "@Jane"}.Key())
	assert.Equal(t, "linkedin:https://linkedin.com/in/jane",
		SocialProfile{Platform: "linkedin", URL: "https://LinkedIn.com/in/jane/"}.Key())
}

func TestDuplicateGroup_Contains(t *testing.T) {
	g := DuplicateGroup{Contacts: []string{"a", "b"}}
	assert.True(t, g.Contains("b"))
	assert.False(t, g.Contains("c"))
}

func TestContactInfoRichness(t *testing.T) {
	var a *ContentQualityAssessment
	assert.Equal(t, 0.0, a.ContactInfoRichness())
	a = &ContentQualityAssessment{Factors: map[string]float64{FactorContactInfoRichness: 0.6}}
	assert.Equal(t, 0.6, a.ContactInfoRichness())
}
