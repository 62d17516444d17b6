package freelance

import (
	"sort"
	"time"

	"github.com/sells-group/contact-intel/internal/lexicon"
	"github.com/sells-group/contact-intel/internal/model"
)

type statusResult struct {
	confidence float64
	signals    []string
}

// detectStatus adds up freelancer signals across the contact and all of its
// outlets. Each matching bio pattern counts; title patterns count once.
func (a *Analyzer) detectStatus(contact model.Contact, outlets []model.OutletAssociation) statusResult {
	var (
		score   float64
		signals []string
	)

	for _, p := range a.lex.FreelancerBioPatterns {
		if p.Re.MatchString(contact.Bio) {
			score += p.Weight
			signals = append(signals, "bio:"+p.Name)
		}
	}

	for _, p := range a.lex.FreelancerTitlePatterns {
		if p.Re.MatchString(contact.Title) {
			score += p.Weight
			signals = append(signals, "title:"+p.Name)
			break
		}
	}

	if domain := model.EmailDomain(contact.Email); domain != "" && a.lex.IsPersonalEmailDomain(domain) && !a.emailMatchesAny(domain, outlets) {
		score += 0.2
		signals = append(signals, "personal_email")
	}

	if n := len(outlets); n > 1 {
		score += 0.3 + 0.1*float64(n-1)
		signals = append(signals, "multi_outlet")
	}

	if a.irregularCadence(outlets) {
		score += 0.2
		signals = append(signals, "irregular_cadence")
	}

	for _, sp := range contact.SocialProfiles {
		if lexicon.AnyMatch(sp.Bio, a.lex.SocialFreelancePatterns) {
			score += 0.15
			signals = append(signals, "social_bio")
			break
		}
	}

	return statusResult{confidence: model.Round4(model.Clamp01(score)), signals: signals}
}

func (a *Analyzer) emailMatchesAny(domain string, outlets []model.OutletAssociation) bool {
	for _, o := range outlets {
		if o.OutletDomain != "" && a.lex.SameOutlet(domain, o.OutletDomain) {
			return true
		}
	}
	return false
}

// irregularCadence reports whether the gaps between consecutive dated
// bylines across all outlets include one longer than IrregularMaxGapDays or
// shorter than IrregularMinGapDays. At least three bylines are needed.
func (a *Analyzer) irregularCadence(outlets []model.OutletAssociation) bool {
	var dates []time.Time
	for _, o := range outlets {
		for _, d := range o.BylineDates {
			if !d.IsZero() {
				dates = append(dates, d)
			}
		}
	}
	if len(dates) < 3 {
		return false
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	for i := 1; i < len(dates); i++ {
		gap := dates[i].Sub(dates[i-1]).Hours() / 24
		if gap > a.cfg.IrregularMaxGapDays || gap < a.cfg.IrregularMinGapDays {
			return true
		}
	}
	return false
}
