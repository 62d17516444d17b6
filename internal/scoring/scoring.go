// Package scoring rates extracted contacts for confidence, data quality and
// topical relevance.
package scoring

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/resilience"
)

// Confidence factor keys.
const (
	FactorNameClarity        = "name_clarity"
	FactorEmailPresence      = "email_presence"
	FactorTitleRelevance     = "title_relevance"
	FactorBioCompleteness    = "bio_completeness"
	FactorSocialVerification = "social_verification"
	FactorSourceAuthority    = "source_authority"
)

// Quality factor keys.
const (
	FactorSourceCredibility      = "source_credibility"
	FactorContentFreshness       = "content_freshness"
	FactorInformationConsistency = "information_consistency"
	FactorContactCompleteness    = "contact_completeness"
	FactorVerificationStatus     = "verification_status"
)

// Scorer scores contacts. It holds only read-only configuration and is safe
// for concurrent use.
type Scorer struct {
	cfg         config.ScoringConfig
	lex         *lexicon.Lexicon
	concurrency int
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithConcurrency sets the worker count for ScoreMany.
func WithConcurrency(n int) Option {
	return func(s *Scorer) { s.concurrency = n }
}

// New creates a Scorer.
func New(cfg config.ScoringConfig, lex *lexicon.Lexicon, opts ...Option) *Scorer {
	s := &Scorer{cfg: cfg, lex: lex, concurrency: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input is one contact with the context it was extracted from.
type Input struct {
	Contact    model.ExtractedContact
	Content    *model.ParsedContent
	Assessment *model.ContentQualityAssessment
	Target     *TargetCriteria
	// ConsistencyScore overrides the computed information consistency.
	ConsistencyScore *float64
}

// ScoreContact applies confidence, quality and relevance scoring to a copy of
// the contact and derives the verification status of pending contacts.
func (s *Scorer) ScoreContact(in Input) (model.ExtractedContact, error) {
	out := in.Contact.Clone()

	if _, err := url.Parse(strings.TrimSpace(out.SourceURL)); err != nil {
		return model.ExtractedContact{}, resilience.NewScoringError(out.ID, err)
	}

	credibility, freshness := 0.5, 0.5
	if in.Assessment != nil {
		credibility = in.Assessment.Credibility
		freshness = in.Assessment.Freshness
	}
	consistency := -1.0
	if in.ConsistencyScore != nil {
		consistency = *in.ConsistencyScore
	}
	if out.VerificationStatus == "" {
		out.VerificationStatus = model.VerificationPending
	}

	conf := s.Confidence(out, ConfidenceContext{
		Content:           in.Content,
		SourceCredibility: credibility,
		ContentFreshness:  freshness,
	})
	qual := s.Quality(out, QualityContext{
		SourceCredibility: credibility,
		ContentFreshness:  freshness,
		ConsistencyScore:  consistency,
	})

	out.ConfidenceScore = conf.Score
	out.QualityScore = qual.Score
	out.RelevanceScore = s.Relevance(out, in.Content, in.Target)
	out.Metadata.ConfidenceFactors = conf.Factors
	out.Metadata.QualityFactors = qual.Factors
	out.VerificationStatus = s.DeriveStatus(out.VerificationStatus, out.ConfidenceScore)

	zap.L().Debug("scoring: contact scored",
		zap.String("contact_id", out.ID),
		zap.Float64("confidence", out.ConfidenceScore),
		zap.Float64("quality", out.QualityScore),
		zap.Float64("relevance", out.RelevanceScore),
		zap.String("status", string(out.VerificationStatus)),
	)
	return out, nil
}

// ScoreMany scores inputs in parallel. Results keep input order; failed
// items are excluded and returned as batch item errors.
func (s *Scorer) ScoreMany(ctx context.Context, inputs []Input) ([]model.ExtractedContact, []*resilience.BatchItemError) {
	return resilience.Batch(ctx, "score", inputs, s.concurrency,
		func(in Input) string { return in.Contact.ID },
		s.ScoreContact,
	)
}

// DeriveStatus moves a pending contact to CONFIRMED, MANUAL_REVIEW or
// REJECTED by confidence. Reviewed statuses are never changed.
func (s *Scorer) DeriveStatus(current model.VerificationStatus, confidence float64) model.VerificationStatus {
	if current != model.VerificationPending {
		return current
	}
	switch {
	case confidence >= s.cfg.ConfirmThreshold:
		return model.VerificationConfirmed
	case confidence < s.cfg.RejectThreshold:
		return model.VerificationRejected
	case confidence < s.cfg.ReviewThreshold:
		return model.VerificationManualReview
	default:
		return model.VerificationPending
	}
}

type weight struct {
	key string
	w   float64
}

// weighted sums factor*weight in table order and clamps the result.
func weighted(factors map[string]float64, table []weight) float64 {
	total := 0.0
	for _, t := range table {
		total += t.w * factors[t.key]
	}
	return model.Round4(model.Clamp01(total))
}

// sourceDomain returns the outlet domain of the contact's source page.
func sourceDomain(c model.ExtractedContact, content *model.ParsedContent) string {
	var host string
	if content != nil {
		host = content.Metadata.Domain
		if host == "" {
			if u, err := url.Parse(content.URL); err == nil {
				host = u.Hostname()
			}
		}
	}
	if host == "" {
		if u, err := url.Parse(c.SourceURL); err == nil {
			host = u.Hostname()
		}
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
