package freelance

import (
	"fmt"
	"strings"

	"github.com/sells-group/contact-intel/internal/model"
)

const maxPreferredOutlets = 3

// Strategy warnings.
const (
	WarningInactive       = "may be inactive: no bylines in the last 90 days"
	WarningNoPrimary      = "no clear primary outlet"
	WarningDeclining      = "activity is declining across outlets"
	WarningBorderline     = "freelancer classification is borderline"
	WarningNoHistory      = "no byline history available"
	WarningDomainMismatch = "email domain does not match the primary outlet"
)

// strategy maps the profile onto an outreach recommendation. The rules are
// evaluated in a fixed order so the same profile always yields the same
// notes and warnings.
func (a *Analyzer) strategy(p *model.FreelancerProfile) model.ContactStrategy {
	s := model.ContactStrategy{Notes: []string{}, Warnings: []string{}}
	act := p.RecentActivity

	switch {
	case act.OutletCount == 0:
		s.ContactTiming = model.TimingMonitor
		s.Warnings = append(s.Warnings, WarningNoHistory)
	case act.ActiveOutlets == 0:
		s.ContactTiming = model.TimingMonitor
		s.Warnings = append(s.Warnings, WarningInactive)
	case p.PrimaryOutlet != nil && p.PrimaryOutlet.RecencyScore >= 0.5:
		s.ContactTiming = model.TimingImmediate
	case act.RecencyPattern == model.PatternSporadic:
		s.ContactTiming = model.TimingSeasonal
	case act.RecencyPattern == model.PatternDeclining:
		s.ContactTiming = model.TimingMonitor
	default:
		s.ContactTiming = model.TimingImmediate
	}

	switch {
	case p.IsFreelancer && act.ActiveOutlets >= 2:
		s.PitchApproach = model.PitchMultiOutlet
	case p.IsFreelancer:
		s.PitchApproach = model.PitchPersonalBrand
	case p.PrimaryOutlet != nil:
		s.PitchApproach = model.PitchOutletSpecific
	case act.OutletCount >= 2 && act.DiversityIndex >= 0.5:
		s.PitchApproach = model.PitchMultiOutlet
	case act.OutletCount == 1:
		s.PitchApproach = model.PitchOutletSpecific
	default:
		s.PitchApproach = model.PitchPersonalBrand
	}

	for _, o := range p.Outlets {
		if len(s.PreferredOutlets) == maxPreferredOutlets {
			break
		}
		if o.RecencyScore > 0 {
			s.PreferredOutlets = append(s.PreferredOutlets, outletLabel(o))
		}
	}

	if p.PrimaryOutlet != nil {
		s.Notes = append(s.Notes, fmt.Sprintf("primary outlet: %s (%s, recency %.2f)",
			outletLabel(*p.PrimaryOutlet), p.PrimaryOutlet.Relationship, p.PrimaryOutlet.RecencyScore))
	} else if act.OutletCount > 0 {
		s.Warnings = append(s.Warnings, WarningNoPrimary)
	}
	if act.OutletCount > 1 {
		s.Notes = append(s.Notes, fmt.Sprintf("writes for %d outlets (diversity %.2f)", act.OutletCount, act.DiversityIndex))
	}
	if len(act.TopBeats) > 0 {
		s.Notes = append(s.Notes, "top beats: "+strings.Join(act.TopBeats, ", "))
	}
	switch s.PitchApproach {
	case model.PitchMultiOutlet:
		s.Notes = append(s.Notes, "pitch stories that can be placed with more than one outlet")
	case model.PitchPersonalBrand:
		s.Notes = append(s.Notes, "pitch to the journalist's own beat rather than a specific outlet")
	case model.PitchOutletSpecific:
		s.Notes = append(s.Notes, "tailor pitches to the primary outlet's coverage")
	}

	if act.RecencyPattern == model.PatternDeclining && act.ActiveOutlets > 0 {
		s.Warnings = append(s.Warnings, WarningDeclining)
	}
	if diff := p.Confidence - a.cfg.FreelancerThreshold; diff > -0.1 && diff <= 0.1 {
		s.Warnings = append(s.Warnings, WarningBorderline)
	}
	if !p.IsFreelancer && p.PrimaryOutlet != nil && p.PrimaryOutlet.Relationship != model.RelationshipStaff &&
		!hasEvidence(*p.PrimaryOutlet, EvidenceEmailDomain) {
		s.Warnings = append(s.Warnings, WarningDomainMismatch)
	}
	return s
}

func hasEvidence(o model.OutletAssociation, typ string) bool {
	for _, e := range o.Evidence {
		if e.Type == typ {
			return true
		}
	}
	return false
}
