// Package report aggregates pipeline output into run statistics and exports
// them for review.
package report

import (
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/resilience"
)

// Input is everything one pipeline run produced.
type Input struct {
	Contents    int
	Assessments []*model.ContentQualityAssessment
	Gated       []string

	Contacts  int
	Scored    []model.ExtractedContact
	Detection *model.DetectionResult

	Subjects int
	Profiles []*model.FreelancerProfile

	Failures []*resilience.BatchItemError
}

// Compute derives RunStats from a run's output. Means are over the items
// that produced a result; rates are 0 when their denominator is.
func Compute(in Input) model.RunStats {
	s := model.RunStats{
		Contents:            in.Contents,
		Gated:               len(in.Gated),
		Contacts:            in.Contacts,
		Scored:              len(in.Scored),
		ConfidenceHistogram: make([]int, model.HistogramBuckets),
		StatusCounts:        make(map[model.VerificationStatus]int),
		Profiles:            len(in.Profiles),
		Failures:            len(in.Failures),
	}

	var overall, spam float64
	for _, a := range in.Assessments {
		if a == nil {
			continue
		}
		s.Assessed++
		overall += a.OverallScore
		spam += a.SpamScore
		if a.IsJournalistic {
			s.Journalistic++
		}
	}
	s.MeanOverallScore = mean(overall, s.Assessed)
	s.MeanSpamScore = mean(spam, s.Assessed)

	var conf, quality, relevance float64
	for _, c := range in.Scored {
		conf += c.ConfidenceScore
		quality += c.QualityScore
		relevance += c.RelevanceScore
		s.ConfidenceHistogram[bucket(c.ConfidenceScore)]++
		s.StatusCounts[c.VerificationStatus]++
	}
	s.MeanConfidence = mean(conf, s.Scored)
	s.MeanQuality = mean(quality, s.Scored)
	s.MeanRelevance = mean(relevance, s.Scored)

	if d := in.Detection; d != nil {
		s.UniqueContacts = len(d.UniqueContacts)
		s.DuplicateGroups = len(d.DuplicateGroups)
		s.TotalDuplicates = d.TotalDuplicates
		s.DuplicateRate = d.DuplicateRate
	}

	for _, p := range in.Profiles {
		if p != nil && p.IsFreelancer {
			s.Freelancers++
		}
	}
	s.FreelancerShare = mean(float64(s.Freelancers), s.Profiles)

	s.SuccessRate = model.Round4(resilience.SuccessRate(in.Contents+in.Contacts+in.Subjects, in.Failures))
	return s
}

// bucket maps a score in [0,1] to one of HistogramBuckets equal-width bins;
// 1.0 falls in the last one.
func bucket(score float64) int {
	b := int(model.Clamp01(score) * model.HistogramBuckets)
	if b >= model.HistogramBuckets {
		b = model.HistogramBuckets - 1
	}
	return b
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return model.Round4(sum / float64(n))
}
