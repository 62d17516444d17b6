package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-intel/internal/model"
)

// Sheet names in the exported workbook.
const (
	SheetSummary     = "Summary"
	SheetAssessments = "Assessments"
	SheetContacts    = "Contacts"
	SheetDuplicates  = "Duplicates"
	SheetFreelancers = "Freelancers"
)

// WriteXLSX writes a workbook with a summary sheet and one sheet per stage
// output.
func WriteXLSX(w io.Writer, in Input, stats model.RunStats) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	writeSummary(summary, stats)

	assessments, err := f.AddSheet(SheetAssessments)
	if err != nil {
		return eris.Wrap(err, "report: add assessments sheet")
	}
	gated := make(map[string]bool, len(in.Gated))
	for _, u := range in.Gated {
		gated[u] = true
	}
	addRow(assessments, "url", "overall", "credibility", "relevance", "freshness", "authority", "spam", "journalistic", "gated", "recommendations")
	for _, a := range in.Assessments {
		if a == nil {
			continue
		}
		r := assessments.AddRow()
		r.AddCell().SetString(a.URL)
		for _, v := range []float64{a.OverallScore, a.Credibility, a.Relevance, a.Freshness, a.Authority, a.SpamScore} {
			r.AddCell().SetFloat(v)
		}
		r.AddCell().SetBool(a.IsJournalistic)
		r.AddCell().SetBool(gated[a.URL])
		r.AddCell().SetString(strings.Join(a.Recommendations, "; "))
	}

	contacts, err := f.AddSheet(SheetContacts)
	if err != nil {
		return eris.Wrap(err, "report: add contacts sheet")
	}
	addRow(contacts, "id", "name", "title", "email", "source_url", "confidence", "quality", "relevance", "status", "duplicate")
	for _, c := range in.Scored {
		r := contacts.AddRow()
		for _, v := range []string{c.ID, c.Name, c.Title, c.Email, c.SourceURL} {
			r.AddCell().SetString(v)
		}
		for _, v := range []float64{c.ConfidenceScore, c.QualityScore, c.RelevanceScore} {
			r.AddCell().SetFloat(v)
		}
		r.AddCell().SetString(string(c.VerificationStatus))
		r.AddCell().SetBool(isDuplicate(in.Detection, c.ID))
	}

	dups, err := f.AddSheet(SheetDuplicates)
	if err != nil {
		return eris.Wrap(err, "report: add duplicates sheet")
	}
	addRow(dups, "group_id", "type", "similarity", "confidence", "selected", "members", "reasoning")
	if in.Detection != nil {
		for _, g := range in.Detection.DuplicateGroups {
			r := dups.AddRow()
			r.AddCell().SetString(g.ID)
			r.AddCell().SetString(string(g.DuplicateType))
			r.AddCell().SetFloat(g.SimilarityScore)
			r.AddCell().SetFloat(g.ConfidenceScore)
			r.AddCell().SetString(g.SelectedContact)
			r.AddCell().SetString(strings.Join(g.Contacts, ", "))
			r.AddCell().SetString(g.Reasoning)
		}
	}

	free, err := f.AddSheet(SheetFreelancers)
	if err != nil {
		return eris.Wrap(err, "report: add freelancers sheet")
	}
	addRow(free, "contact_id", "freelancer", "confidence", "outlets", "primary_outlet", "timing", "pitch", "warnings")
	for _, p := range in.Profiles {
		if p == nil {
			continue
		}
		primary := ""
		if p.PrimaryOutlet != nil {
			primary = p.PrimaryOutlet.OutletName
		}
		r := free.AddRow()
		r.AddCell().SetString(p.ContactID)
		r.AddCell().SetBool(p.IsFreelancer)
		r.AddCell().SetFloat(p.Confidence)
		r.AddCell().SetInt(len(p.Outlets))
		r.AddCell().SetString(primary)
		r.AddCell().SetString(string(p.ContactStrategy.ContactTiming))
		r.AddCell().SetString(string(p.ContactStrategy.PitchApproach))
		r.AddCell().SetString(strings.Join(p.ContactStrategy.Warnings, "; "))
	}

	return eris.Wrap(f.Write(w), "report: write workbook")
}

// SummaryRows returns the label/value pairs shown on the summary sheet and
// by the CLI table output.
func SummaryRows(s model.RunStats) [][2]string {
	rows := [][2]string{
		{"contents", fmt.Sprint(s.Contents)},
		{"assessed", fmt.Sprint(s.Assessed)},
		{"gated", fmt.Sprint(s.Gated)},
		{"journalistic", fmt.Sprint(s.Journalistic)},
		{"mean overall score", fmt.Sprintf("%.4f", s.MeanOverallScore)},
		{"mean spam score", fmt.Sprintf("%.4f", s.MeanSpamScore)},
		{"contacts", fmt.Sprint(s.Contacts)},
		{"scored", fmt.Sprint(s.Scored)},
		{"mean confidence", fmt.Sprintf("%.4f", s.MeanConfidence)},
		{"mean quality", fmt.Sprintf("%.4f", s.MeanQuality)},
		{"mean relevance", fmt.Sprintf("%.4f", s.MeanRelevance)},
	}
	for i, n := range s.ConfidenceHistogram {
		lo := float64(i) / model.HistogramBuckets
		hi := float64(i+1) / model.HistogramBuckets
		rows = append(rows, [2]string{fmt.Sprintf("confidence %.1f-%.1f", lo, hi), fmt.Sprint(n)})
	}
	statuses := make([]string, 0, len(s.StatusCounts))
	for st := range s.StatusCounts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		rows = append(rows, [2]string{"status " + st, fmt.Sprint(s.StatusCounts[model.VerificationStatus(st)])})
	}
	rows = append(rows,
		[2]string{"unique contacts", fmt.Sprint(s.UniqueContacts)},
		[2]string{"duplicate groups", fmt.Sprint(s.DuplicateGroups)},
		[2]string{"total duplicates", fmt.Sprint(s.TotalDuplicates)},
		[2]string{"duplicate rate", fmt.Sprintf("%.4f", s.DuplicateRate)},
		[2]string{"profiles", fmt.Sprint(s.Profiles)},
		[2]string{"freelancers", fmt.Sprint(s.Freelancers)},
		[2]string{"freelancer share", fmt.Sprintf("%.4f", s.FreelancerShare)},
		[2]string{"failures", fmt.Sprint(s.Failures)},
		[2]string{"success rate", fmt.Sprintf("%.4f", s.SuccessRate)},
	)
	return rows
}

func writeSummary(sheet *xlsx.Sheet, s model.RunStats) {
	addRow(sheet, "metric", "value")
	for _, kv := range SummaryRows(s) {
		addRow(sheet, kv[0], kv[1])
	}
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	r := sheet.AddRow()
	for _, v := range values {
		r.AddCell().SetString(v)
	}
}

func isDuplicate(d *model.DetectionResult, id string) bool {
	if d == nil {
		return false
	}
	for _, c := range d.Duplicates {
		if c.ID == id {
			return true
		}
	}
	return false
}
