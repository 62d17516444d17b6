package scoring

import (
	"fmt"
	"strings"

	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/names"
)

// QualityContext is the page context for quality scoring. A negative
// ConsistencyScore means the consistency is computed from the contact.
type QualityContext struct {
	SourceCredibility float64
	ContentFreshness  float64
	ConsistencyScore  float64
}

// QualityResult is the breakdown of a data-quality score.
type QualityResult struct {
	Score                  float64            `json:"score"`
	Factors                map[string]float64 `json:"factors"`
	Reasoning              []string           `json:"reasoning"`
	ImprovementSuggestions []string           `json:"improvement_suggestions"`
}

var verificationScores = map[model.VerificationStatus]float64{
	model.VerificationConfirmed:    1.0,
	model.VerificationPending:      0.7,
	model.VerificationManualReview: 0.4,
	model.VerificationRejected:     0.1,
}

// Quality rates the overall data quality of the contact record.
func (s *Scorer) Quality(c model.ExtractedContact, ctx QualityContext) QualityResult {
	consistency := ctx.ConsistencyScore
	if consistency < 0 {
		consistency = s.Consistency(c)
	}

	status, ok := verificationScores[c.VerificationStatus]
	if !ok {
		status = verificationScores[model.VerificationPending]
	}

	factors := map[string]float64{
		FactorSourceCredibility:      model.Round4(model.Clamp01(ctx.SourceCredibility)),
		FactorContentFreshness:       model.Round4(model.Clamp01(ctx.ContentFreshness)),
		FactorInformationConsistency: model.Round4(model.Clamp01(consistency)),
		FactorContactCompleteness:    Completeness(c),
		FactorVerificationStatus:     status,
	}

	w := s.cfg.QualityWeights
	res := QualityResult{
		Score: weighted(factors, []weight{
			{FactorSourceCredibility, w.SourceCredibility},
			{FactorContentFreshness, w.ContentFreshness},
			{FactorInformationConsistency, w.InformationConsistency},
			{FactorContactCompleteness, w.ContactCompleteness},
			{FactorVerificationStatus, w.VerificationStatus},
		}),
		Factors: factors,
	}

	res.Reasoning = []string{
		fmt.Sprintf("source credibility %.2f", factors[FactorSourceCredibility]),
		fmt.Sprintf("content freshness %.2f", factors[FactorContentFreshness]),
		fmt.Sprintf("information consistency %.2f", factors[FactorInformationConsistency]),
		fmt.Sprintf("contact completeness %.2f", factors[FactorContactCompleteness]),
		fmt.Sprintf("verification %s", c.VerificationStatus),
	}

	for _, f := range missingFields(c) {
		res.ImprovementSuggestions = append(res.ImprovementSuggestions, "add "+f)
	}
	if factors[FactorSourceCredibility] < 0.5 {
		res.ImprovementSuggestions = append(res.ImprovementSuggestions, "confirm details against a more credible source")
	}
	if factors[FactorContentFreshness] < 0.5 {
		res.ImprovementSuggestions = append(res.ImprovementSuggestions, "refresh from recently published content")
	}
	if factors[FactorInformationConsistency] < 0.5 {
		res.ImprovementSuggestions = append(res.ImprovementSuggestions, "resolve conflicting contact details")
	}
	if c.VerificationStatus == model.VerificationPending || c.VerificationStatus == model.VerificationManualReview {
		res.ImprovementSuggestions = append(res.ImprovementSuggestions, "complete manual verification")
	}
	return res
}

// Completeness is the fraction of name, email, title, bio and social
// profiles that are present.
func Completeness(c model.ExtractedContact) float64 {
	return float64(5-len(missingFields(c))) / 5
}

func missingFields(c model.ExtractedContact) []string {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(c.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(c.Bio) == "" {
		missing = append(missing, "bio")
	}
	if len(c.SocialProfiles) == 0 {
		missing = append(missing, "social profiles")
	}
	return missing
}

// Consistency measures agreement between the contact's own fields: email
// local part vs name, title vs bio, and social handles vs name. A contact
// with nothing to cross-check is neutral.
func (s *Scorer) Consistency(c model.ExtractedContact) float64 {
	p := names.Parse(c.Name, s.lex)
	checks, agree := 0, 0

	if c.Email != "" && len(p.Tokens) > 0 {
		checks++
		if emailMatchesName(c.Email, p) {
			agree++
		}
	}

	if strings.TrimSpace(c.Title) != "" && strings.TrimSpace(c.Bio) != "" {
		checks++
		if s.titleAgreesWithBio(c.Title, c.Bio) {
			agree++
		}
	}

	for _, sp := range c.SocialProfiles {
		handle := names.Fold(strings.TrimPrefix(strings.TrimSpace(sp.Handle), "@"))
		if handle == "" || len(p.Tokens) == 0 {
			continue
		}
		checks++
		if handleMatchesName(handle, p) {
			agree++
		}
	}

	if checks == 0 {
		return 0.5
	}
	return model.Round4(float64(agree) / float64(checks))
}

func (s *Scorer) titleAgreesWithBio(title, bio string) bool {
	bioLower := names.Fold(bio)
	for _, tok := range strings.Fields(names.Fold(title)) {
		tok = strings.Trim(tok, ",.;:")
		if len(tok) >= 4 && !s.lex.IsTitleModifier(tok) && strings.Contains(bioLower, tok) {
			return true
		}
	}
	return len(lexicon.MatchTerms(title, s.lex.JournalistKeywords)) > 0 &&
		len(lexicon.MatchTerms(bio, s.lex.JournalistKeywords)) > 0
}

func handleMatchesName(handle string, p names.Parsed) bool {
	handle = strings.NewReplacer("_", "", ".", "", "-", "").Replace(handle)
	for _, tok := range []string{p.First(), p.Last()} {
		if len(tok) >= 3 && strings.Contains(handle, tok) {
			return true
		}
	}
	return false
}
