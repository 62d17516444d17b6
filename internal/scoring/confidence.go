package scoring

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/names"
)

// ConfidenceContext is the page context for confidence scoring.
type ConfidenceContext struct {
	Content           *model.ParsedContent
	SourceCredibility float64
	ContentFreshness  float64
}

// ConfidenceResult is the breakdown of a confidence score.
type ConfidenceResult struct {
	Score           float64            `json:"score"`
	Factors         map[string]float64 `json:"factors"`
	Reasoning       []string           `json:"reasoning"`
	Recommendations []string           `json:"recommendations"`
}

// Confidence rates how trustworthy the contact's identity data is.
func (s *Scorer) Confidence(c model.ExtractedContact, ctx ConfidenceContext) ConfidenceResult {
	domain := sourceDomain(c, ctx.Content)

	factors := map[string]float64{
		FactorNameClarity:        s.nameClarity(c),
		FactorEmailPresence:      s.emailPresence(c.Email, domain),
		FactorTitleRelevance:     s.titleRelevance(c.Title),
		FactorBioCompleteness:    s.bioCompleteness(c.Bio),
		FactorSocialVerification: socialVerification(c.SocialProfiles),
		FactorSourceAuthority:    model.Round4(model.Clamp01(ctx.SourceCredibility)),
	}

	w := s.cfg.ConfidenceWeights
	score := weighted(factors, []weight{
		{FactorNameClarity, w.NameClarity},
		{FactorEmailPresence, w.EmailPresence},
		{FactorTitleRelevance, w.TitleRelevance},
		{FactorBioCompleteness, w.BioCompleteness},
		{FactorSocialVerification, w.SocialVerification},
		{FactorSourceAuthority, w.SourceAuthority},
	})

	res := ConfidenceResult{Score: score, Factors: factors}
	for _, f := range confidenceOrder {
		res.Reasoning = append(res.Reasoning, fmt.Sprintf("%s %.2f", f.label, factors[f.key]))
		if factors[f.key] < 0.5 {
			res.Recommendations = append(res.Recommendations, f.advice)
		}
	}
	return res
}

var confidenceOrder = []struct {
	key, label, advice string
}{
	{FactorNameClarity, "name clarity", "verify the contact's full name"},
	{FactorEmailPresence, "email presence", "find a professional email address"},
	{FactorTitleRelevance, "title relevance", "confirm the contact's job title"},
	{FactorBioCompleteness, "bio completeness", "add a professional bio"},
	{FactorSocialVerification, "social verification", "link verified social profiles"},
	{FactorSourceAuthority, "source authority", "corroborate with a more credible source"},
}

// nameClarity rewards two-part, well-formed names that agree with the
// email, and penalizes placeholders and honorific contamination.
func (s *Scorer) nameClarity(c model.ExtractedContact) float64 {
	raw := strings.TrimSpace(c.Name)
	if raw == "" {
		return 0
	}

	p := names.Parse(raw, s.lex)
	score := 0.3
	switch n := len(p.Tokens); {
	case n == 2:
		score += 0.3
	case n == 3:
		score += 0.2
	case n > 3:
		score += 0.05
	}
	if realisticName(raw, s.lex) {
		score += 0.2
	}
	if emailMatchesName(c.Email, p) {
		score += 0.2
	}

	if lexicon.AnyMatch(raw, s.lex.SuspiciousNamePatterns) {
		score -= 0.4
	}
	if names.LongestRun(raw) >= 4 {
		score -= 0.3
	}
	if p.HasAffixes() {
		score -= 0.1
	}
	return model.Round4(model.Clamp01(score))
}

// realisticName requires every core token to start with an uppercase
// letter and contain only letters, hyphens, apostrophes and periods.
func realisticName(raw string, lex *lexicon.Lexicon) bool {
	seen := 0
	for _, tok := range strings.Fields(raw) {
		if lex.IsNamePrefix(tok) || lex.IsNameSuffix(tok) {
			continue
		}
		tok = strings.TrimSuffix(tok, ",")
		runes := []rune(tok)
		if len(runes) == 0 || !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes {
			if !unicode.IsLetter(r) && r != '-' && r != '\'' && r != '.' {
				return false
			}
		}
		seen++
	}
	return seen > 0
}

// emailMatchesName reports whether the email local part contains the first
// or last name, or the first initial followed by the last name.
func emailMatchesName(email string, p names.Parsed) bool {
	local, _, ok := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if !ok || local == "" || len(p.Tokens) == 0 {
		return false
	}
	local = strings.NewReplacer(".", "", "_", "", "-", "").Replace(local)
	first, last := p.First(), p.Last()
	if len(first) >= 3 && strings.Contains(local, first) {
		return true
	}
	if len(last) >= 2 && strings.Contains(local, last) {
		return true
	}
	return first != "" && last != "" && strings.HasPrefix(local, string([]rune(first)[:1])+last)
}

// emailPresence grades the email: valid professional addresses at the
// source outlet score highest, personal mailboxes lowest.
func (s *Scorer) emailPresence(email, outletDomain string) float64 {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || !strings.Contains(addr.Address, "@") {
		return 0.2
	}

	domain := model.EmailDomain(addr.Address)
	if !strings.Contains(domain, ".") {
		return 0.2
	}
	score := 0.6
	if !s.lex.IsPersonalEmailDomain(domain) {
		score += 0.2
		if outletDomain != "" && (domain == outletDomain || strings.HasSuffix(domain, "."+outletDomain) || strings.HasSuffix(outletDomain, "."+domain)) {
			score += 0.2
		}
	}
	return model.Round4(model.Clamp01(score))
}

func (s *Scorer) titleRelevance(title string) float64 {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0
	}
	score := 0.3
	if len(lexicon.MatchTerms(title, s.lex.JournalistKeywords)) > 0 {
		score += 0.4
	}
	if lexicon.AnyMatch(title, s.lex.ProfessionalTitles) {
		score += 0.3
	}
	return model.Round4(model.Clamp01(score))
}

// bioCompleteness prefers 50-300 character bios and rewards professional
// background keywords.
func (s *Scorer) bioCompleteness(bio string) float64 {
	bio = strings.TrimSpace(bio)
	if bio == "" {
		return 0
	}
	var score float64
	switch n := len([]rune(bio)); {
	case n < 50:
		score = 0.25
	case n <= 300:
		score = 0.5
	default:
		score = 0.4
	}
	hits := len(lexicon.MatchTerms(bio, s.lex.BackgroundKeywords))
	score += min(0.1*float64(hits), 0.5)
	return model.Round4(model.Clamp01(score))
}

func socialVerification(profiles []model.SocialProfile) float64 {
	if len(profiles) == 0 {
		return 0
	}
	score := 0.5 * float64(min(len(profiles), 3)) / 3
	verified := false
	followers := 0
	for _, p := range profiles {
		verified = verified || p.Verified
		followers = max(followers, p.Followers)
	}
	if verified {
		score += 0.3
	}
	switch {
	case followers >= 10000:
		score += 0.2
	case followers >= 1000:
		score += 0.1
	}
	return model.Round4(model.Clamp01(score))
}
