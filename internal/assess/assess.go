// Package assess scores the quality of fetched web pages before their
// contacts are trusted.
package assess

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/resilience"
)

// EmptyContentRecommendation is the only recommendation on a neutral
// assessment of a page with no body text.
const EmptyContentRecommendation = "content body is empty"

// Assessor computes ContentQualityAssessments. It holds only read-only
// configuration and is safe for concurrent use.
type Assessor struct {
	cfg         config.AssessConfig
	lex         *lexicon.Lexicon
	now         func() time.Time
	concurrency int
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithClock sets the reference time used for freshness.
func WithClock(now func() time.Time) Option {
	return func(a *Assessor) { a.now = now }
}

// WithConcurrency sets the worker count for AssessMany.
func WithConcurrency(n int) Option {
	return func(a *Assessor) { a.concurrency = n }
}

// New creates an Assessor.
func New(cfg config.AssessConfig, lex *lexicon.Lexicon, opts ...Option) *Assessor {
	a := &Assessor{
		cfg:         cfg,
		lex:         lex,
		now:         time.Now,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess scores one page. Missing or malformed fields lower scores; only an
// unparseable URL returns an *resilience.AssessmentError.
func (a *Assessor) Assess(content model.ParsedContent) (*model.ContentQualityAssessment, error) {
	u, err := url.Parse(strings.TrimSpace(content.URL))
	if err != nil {
		return nil, resilience.NewAssessmentError(content.URL, err)
	}

	if strings.TrimSpace(content.Content) == "" {
		return a.neutral(content.URL), nil
	}

	p := newPage(content, u)

	credibility := a.credibility(p)
	relevance := a.relevance(p)
	freshness := a.freshness(content.PublishedAt)
	authority := a.authority(p)
	spam := a.spamScore(p)
	contactInfo, hasContactInfo := a.contactInfoRichness(p)
	isJournalistic := len(lexicon.MatchTerms(p.text, a.lex.JournalisticIndicators)) >= 2

	res := &model.ContentQualityAssessment{
		URL:            content.URL,
		Credibility:    credibility,
		Relevance:      relevance,
		Freshness:      freshness,
		Authority:      authority,
		SpamScore:      spam,
		HasContactInfo: hasContactInfo,
		IsJournalistic: isJournalistic,
		Factors: map[string]float64{
			model.FactorCredibility:         credibility,
			model.FactorRelevance:           relevance,
			model.FactorFreshness:           freshness,
			model.FactorAuthority:           authority,
			model.FactorSpamScore:           spam,
			model.FactorContactInfoRichness: contactInfo,
		},
	}
	res.OverallScore = a.overall(res.Factors)
	res.Recommendations = a.recommendations(res)

	zap.L().Debug("assess: page scored",
		zap.String("url", content.URL),
		zap.Float64("overall", res.OverallScore),
		zap.Float64("spam", spam),
	)
	return res, nil
}

// AssessMany assesses contents in parallel. Results keep input order; items
// that fail are excluded and returned as batch item errors.
func (a *Assessor) AssessMany(ctx context.Context, contents []model.ParsedContent) ([]*model.ContentQualityAssessment, []*resilience.BatchItemError) {
	return resilience.Batch(ctx, "assess", contents, a.concurrency,
		func(c model.ParsedContent) string { return c.URL },
		a.Assess,
	)
}

func (a *Assessor) overall(f map[string]float64) float64 {
	w := a.cfg.Weights
	score := w.Credibility*f[model.FactorCredibility] +
		w.Relevance*f[model.FactorRelevance] +
		w.Freshness*f[model.FactorFreshness] +
		w.Authority*f[model.FactorAuthority] +
		w.Spam*(1-f[model.FactorSpamScore]) +
		w.ContactInfo*f[model.FactorContactInfoRichness]
	return model.Round4(model.Clamp01(score))
}

func (a *Assessor) neutral(rawURL string) *model.ContentQualityAssessment {
	res := &model.ContentQualityAssessment{
		URL:         rawURL,
		Credibility: 0.5,
		Relevance:   0.5,
		Freshness:   0.5,
		Authority:   0.5,
		Factors: map[string]float64{
			model.FactorCredibility:         0.5,
			model.FactorRelevance:           0.5,
			model.FactorFreshness:           0.5,
			model.FactorAuthority:           0.5,
			model.FactorSpamScore:           0,
			model.FactorContactInfoRichness: 0.5,
		},
		Recommendations: []string{EmptyContentRecommendation},
	}
	res.OverallScore = a.overall(res.Factors)
	return res
}

// recommendations are emitted in a fixed order so output is stable.
func (a *Assessor) recommendations(r *model.ContentQualityAssessment) []string {
	recs := []string{}
	if r.Credibility < a.cfg.CredibilityThreshold {
		recs = append(recs, "low source credibility: verify contacts against an authoritative source")
	}
	if r.Relevance < a.cfg.RelevanceThreshold {
		recs = append(recs, "few journalist signals: contacts may not be media professionals")
	}
	if r.Freshness < a.cfg.FreshnessThreshold {
		recs = append(recs, "stale or undated content: confirm contacts are still current")
	}
	if r.Authority < a.cfg.AuthorityThreshold {
		recs = append(recs, "low domain authority: corroborate with a second source")
	}
	if r.SpamScore > a.cfg.SpamThreshold {
		recs = append(recs, "high spam risk: exclude this source from extraction")
	}
	if !r.HasContactInfo {
		recs = append(recs, "no direct contact information found on page")
	}
	if !r.IsJournalistic {
		recs = append(recs, "page does not read as journalism: treat roles as unverified")
	}
	return recs
}
