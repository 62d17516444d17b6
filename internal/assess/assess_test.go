package assess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/resilience"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestAssessor(t *testing.T) *Assessor {
	t.Helper()
	return New(config.Defaults().Assess, lexicon.Default(),
		WithClock(func() time.Time { return testNow }),
		WithConcurrency(4),
	)
}

func uniqueWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(words, " ")
}

func daysAgo(d float64) *time.Time {
	ts := testNow.Add(-time.Duration(d * 24 * float64(time.Hour)))
	return &ts
}

func articlePage() model.ParsedContent {
	return model.ParsedContent{
		URL:         "https://www.nytimes.com/2025/06/13/business/tax-rules.html",
		Title:       "Reporter explains the new tax rules",
		Author:      "Jane Smith",
		Content:     "By Jane Smith\n" + uniqueWords(400),
		PublishedAt: daysAgo(2),
		Language:    "en",
		Metadata:    model.ContentMetadata{WordCount: 400, Domain: "nytimes.com"},
	}
}

func TestAssess_CredibleRecentArticle(t *testing.T) {
	a := newTestAssessor(t)

	res, err := a.Assess(articlePage())
	require.NoError(t, err)

	assert.Equal(t, 0.9, res.Freshness)
	assert.Greater(t, res.OverallScore, 0.7)
	assert.InDelta(t, 1.0, res.Credibility, 0.001)
	assert.InDelta(t, 0.85, res.Authority, 0.001)
	assert.InDelta(t, 0.85, res.Relevance, 0.001)
	assert.Equal(t, 0.0, res.SpamScore)
	assert.Len(t, res.Factors, 6)
}

func TestAssess_SpamPenalizesOverall(t *testing.T) {
	a := newTestAssessor(t)

	clean, err := a.Assess(articlePage())
	require.NoError(t, err)

	spammy := articlePage()
	spammy.Title = "YOU WON'T BELIEVE what happened next"
	spammy.Content = spammy.Content + " Wow!!!!"

	res, err := a.Assess(spammy)
	require.NoError(t, err)

	assert.Greater(t, res.SpamScore, clean.SpamScore)
	assert.InDelta(t, 0.2, res.SpamScore, 0.001)
	assert.Less(t, res.OverallScore, clean.OverallScore)
}

func TestAssess_Deterministic(t *testing.T) {
	a := newTestAssessor(t)
	page := articlePage()

	first, err := a.Assess(page)
	require.NoError(t, err)
	second, err := a.Assess(page)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAssess_EmptyContentIsNeutral(t *testing.T) {
	a := newTestAssessor(t)

	res, err := a.Assess(model.ParsedContent{URL: "https://example.com/a", Content: "   "})
	require.NoError(t, err)

	assert.Equal(t, 0.5, res.Credibility)
	assert.Equal(t, 0.5, res.Relevance)
	assert.Equal(t, 0.5, res.Freshness)
	assert.Equal(t, 0.5, res.Authority)
	assert.Equal(t, 0.0, res.SpamScore)
	assert.InDelta(t, 0.55, res.OverallScore, 0.0001)
	assert.Equal(t, []string{EmptyContentRecommendation}, res.Recommendations)
}

func TestAssess_UnparseableURL(t *testing.T) {
	a := newTestAssessor(t)

	_, err := a.Assess(model.ParsedContent{URL: "http://[::1", Content: "body"})
	require.Error(t, err)

	var ae *resilience.AssessmentError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "http://[::1", ae.URL)
}

func TestFreshness_Steps(t *testing.T) {
	a := newTestAssessor(t)
	tests := []struct {
		days float64
		want float64
	}{
		{0.5, 1.0},
		{1, 1.0},
		{3, 0.9},
		{7, 0.9},
		{20, 0.8},
		{60, 0.6},
		{200, 0.4},
		{400, 0.2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1f days", tt.days), func(t *testing.T) {
			assert.Equal(t, tt.want, a.freshness(daysAgo(tt.days)))
		})
	}
	assert.Equal(t, 0.5, a.freshness(nil))
}

func TestAssess_SuspiciousDomainLowersCredibility(t *testing.T) {
	a := newTestAssessor(t)

	page := articlePage()
	page.URL = "http://win-news-deals-now.xyz/story"
	page.Metadata.Domain = ""

	res, err := a.Assess(page)
	require.NoError(t, err)
	assert.Less(t, res.Credibility, 0.8)
	assert.Less(t, res.Authority, 0.5)
}

func TestAssess_SpamDomain(t *testing.T) {
	a := newTestAssessor(t)

	page := articlePage()
	page.URL = "https://clickbait-world.com/story"
	page.Metadata.Domain = ""

	res, err := a.Assess(page)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.SpamScore, 0.5)
	assert.Contains(t, res.Recommendations, "high spam risk: exclude this source from extraction")
}

func TestAssess_TrackingParamsLowerAuthority(t *testing.T) {
	a := newTestAssessor(t)

	clean, err := a.Assess(articlePage())
	require.NoError(t, err)

	tracked := articlePage()
	tracked.URL += "?utm_source=newsletter"
	res, err := a.Assess(tracked)
	require.NoError(t, err)

	assert.InDelta(t, clean.Authority-0.05, res.Authority, 0.0001)
}

func TestContactInfoRichness(t *testing.T) {
	a := newTestAssessor(t)

	page := articlePage()
	page.Content = "Contact the reporter at jane@nytimes.com or (212) 555-1234. Follow @janesmith for updates."

	res, err := a.Assess(page)
	require.NoError(t, err)

	assert.True(t, res.HasContactInfo)
	assert.InDelta(t, 0.425, res.ContactInfoRichness(), 0.001)
}

func TestAssess_IsJournalistic(t *testing.T) {
	a := newTestAssessor(t)

	page := articlePage()
	page.Content = "The company reported losses, according to a statement released Monday."

	res, err := a.Assess(page)
	require.NoError(t, err)
	assert.True(t, res.IsJournalistic)

	page.Content = "Buy our widgets today."
	res, err = a.Assess(page)
	require.NoError(t, err)
	assert.False(t, res.IsJournalistic)
}

func TestAssess_ScoresStayInRange(t *testing.T) {
	a := newTestAssessor(t)

	page := articlePage()
	page.Title = "SHOCKING!!! YOU WON'T BELIEVE ONE WEIRD TRICK DOCTORS HATE"
	page.Content = strings.Repeat("CLICK HERE buy now casino jackpot miracle free money!!! ", 30)
	page.URL = "http://viral-fakenews-12345.tk/?utm_source=x"
	page.Metadata.Domain = ""

	res, err := a.Assess(page)
	require.NoError(t, err)

	for name, v := range res.Factors {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
	assert.Equal(t, 1.0, res.SpamScore)
	assert.GreaterOrEqual(t, res.OverallScore, 0.0)
	assert.LessOrEqual(t, res.OverallScore, 1.0)
}

func TestAssessMany_IsolatesFailures(t *testing.T) {
	a := newTestAssessor(t)

	good := articlePage()
	bad := model.ParsedContent{URL: "http://[::1", Content: "body"}
	empty := model.ParsedContent{URL: "https://example.com/empty"}

	results, failures := a.AssessMany(context.Background(), []model.ParsedContent{good, bad, empty})

	require.Len(t, results, 2)
	assert.Equal(t, good.URL, results[0].URL)
	assert.Equal(t, empty.URL, results[1].URL)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.Equal(t, "assess", failures[0].Stage)
}
