package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/assess"
	"github.com/sells-group/contact-intel/internal/model"
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess the quality of parsed source pages",
	Long: `Scores each parsed page for credibility, relevance, freshness,
authority, spam and contact-info richness.

Examples:
  # Table to stdout
  contact-intel assess --input contents.json

  # CSV export
  contact-intel assess --input contents.json --format csv --output assessments.csv`,
	RunE: runAssess,
}

func init() {
	f := assessCmd.Flags()
	f.String("input", "", "path to a JSON array of parsed contents (required)")
	f.String("format", "table", "output format: table, csv or json")
	f.String("output", "", "output file path (default: stdout)")
	_ = assessCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(assessCmd)
}

func runAssess(cmd *cobra.Command, _ []string) error {
	input, _ := cmd.Flags().GetString("input")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	if err := checkFormat(format); err != nil {
		return err
	}

	contents, err := readJSON[[]model.ParsedContent](input)
	if err != nil {
		return eris.Wrap(err, "assess")
	}

	a := assess.New(cfg.Assess, lex, assess.WithConcurrency(cfg.Batch.Concurrency))
	results, failures := a.AssessMany(cmd.Context(), contents)
	for _, f := range failures {
		zap.L().Warn("assess: skipped page", zap.String("url", f.Key), zap.Error(f.Err))
	}

	w, err := openOutput(outputPath)
	if err != nil {
		return eris.Wrap(err, "assess")
	}
	defer w.Close() //nolint:errcheck

	switch format {
	case "csv":
		return writeAssessCSV(w, results)
	case "json":
		return writeJSON(w, results)
	default:
		return writeAssessTable(w, results)
	}
}

func checkFormat(format string) error {
	switch format {
	case "table", "csv", "json":
		return nil
	}
	return eris.Errorf("--format must be table, csv or json (got %q)", format)
}

func writeAssessCSV(w io.Writer, results []*model.ContentQualityAssessment) error {
	cw := csv.NewWriter(w)
	header := []string{"url", "overall", "credibility", "relevance", "freshness", "authority", "spam", "journalistic", "has_contact_info", "recommendations"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "assess: write CSV header")
	}
	for _, r := range results {
		row := []string{
			r.URL,
			fmt.Sprintf("%.4f", r.OverallScore),
			fmt.Sprintf("%.4f", r.Credibility),
			fmt.Sprintf("%.4f", r.Relevance),
			fmt.Sprintf("%.4f", r.Freshness),
			fmt.Sprintf("%.4f", r.Authority),
			fmt.Sprintf("%.4f", r.SpamScore),
			fmt.Sprintf("%v", r.IsJournalistic),
			fmt.Sprintf("%v", r.HasContactInfo),
			strings.Join(r.Recommendations, "; "),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "assess: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "assess: flush CSV")
}

func writeAssessTable(w io.Writer, results []*model.ContentQualityAssessment) error {
	if _, err := fmt.Fprintf(w, "%-60s %7s %7s %7s %7s %7s %5s\n",
		"URL", "Overall", "Cred", "Rel", "Fresh", "Spam", "Jour"); err != nil {
		return eris.Wrap(err, "assess: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 106)); err != nil {
		return eris.Wrap(err, "assess: write table separator")
	}
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%-60s %7.3f %7.3f %7.3f %7.3f %7.3f %5v\n",
			truncate(r.URL, 60), r.OverallScore, r.Credibility, r.Relevance, r.Freshness, r.SpamScore, r.IsJournalistic); err != nil {
			return eris.Wrap(err, "assess: write table row")
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
