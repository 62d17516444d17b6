package freelance

import (
	"math"
	"time"

	"github.com/sells-group/contact-intel/internal/model"
)

const maxTopBeats = 5

// primaryOutlet returns the strongest outlet when its strength exceeds
// PrimaryThreshold. outlets must already be ranked.
func (a *Analyzer) primaryOutlet(outlets []model.OutletAssociation) *model.OutletAssociation {
	if len(outlets) == 0 {
		return nil
	}
	best := outlets[0]
	if strength(best, a.cfg) <= a.cfg.PrimaryThreshold {
		return nil
	}
	best = cloneAssociation(best)
	return &best
}

func (a *Analyzer) summarize(outlets []model.OutletAssociation, now time.Time) model.ActivitySummary {
	s := model.ActivitySummary{OutletCount: len(outlets)}

	counts := make([]int, 0, len(outlets))
	beats := make(map[string]int)
	for _, o := range outlets {
		s.TotalBylines += o.TotalBylines
		counts = append(counts, o.TotalBylines)
		if o.LastByline.After(s.MostRecentByline) {
			s.MostRecentByline = o.LastByline
		}
		for _, d := range o.BylineDates {
			if d.IsZero() {
				continue
			}
			age := now.Sub(d)
			if age <= 30*day {
				s.BylinesLast30++
			}
			if age <= 90*day {
				s.BylinesLast90++
			}
		}
		if !o.LastByline.IsZero() {
			age := now.Sub(o.LastByline)
			if age <= 30*day {
				s.ActiveOutlets30++
			}
			if age <= 90*day {
				s.ActiveOutlets++
			}
		}
		for i, b := range o.Beats {
			// Earlier beats in an outlet's list were more frequent there.
			beats[b] += len(o.Beats) - i
		}
	}

	s.DiversityIndex = DiversityIndex(counts)
	s.RecencyPattern = recencyPattern(s.ActiveOutlets30, s.ActiveOutlets, s.OutletCount)
	top := sortedByCount(beats)
	if len(top) > maxTopBeats {
		top = top[:maxTopBeats]
	}
	s.TopBeats = top
	return s
}

// DiversityIndex is the Shannon entropy of byline counts across outlets,
// normalized by log2 of the number of outlets. Outlets without bylines add
// nothing to the entropy but still count toward the maximum. It is 0 for
// one outlet and 1 for an even spread.
func DiversityIndex(counts []int) float64 {
	if len(counts) <= 1 {
		return 0
	}
	total := 0
	for _, c := range counts {
		if c > 0 {
			total += c
		}
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return model.Round4(model.Clamp01(h / math.Log2(float64(len(counts)))))
}

// recencyPattern compares active outlets over 30 days, over 90 days and in
// total. Rules apply in order:
//
//	no outlets                       sporadic
//	fewer than half active in 90d    declining
//	none active in 30d               sporadic
//	all active in 30d                consistent
//	most 90d outlets active in 30d   increasing
//	otherwise                        consistent
func recencyPattern(active30, active90, total int) model.RecencyPattern {
	switch {
	case total == 0:
		return model.PatternSporadic
	case active90*2 < total:
		return model.PatternDeclining
	case active30 == 0:
		return model.PatternSporadic
	case active30 == total:
		return model.PatternConsistent
	case active30*2 > active90:
		return model.PatternIncreasing
	default:
		return model.PatternConsistent
	}
}
