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
	"github.com/sells-group/contact-intel/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score extracted contacts",
	Long: `Computes confidence, relevance and data quality for each contact and
derives its verification status. Source pages given with --contents are
assessed first and matched to contacts by source URL.

Examples:
  contact-intel score --contacts contacts.json --contents contents.json
  contact-intel score --contacts contacts.json --beats technology,science --languages en --format csv`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("contacts", "", "path to a JSON array of extracted contacts (required)")
	f.String("contents", "", "path to a JSON array of parsed source pages")
	f.String("beats", "", "comma-separated target beats")
	f.String("outlets", "", "comma-separated target outlet domains")
	f.String("languages", "", "comma-separated target languages")
	f.String("format", "table", "output format: table, csv or json")
	f.String("output", "", "output file path (default: stdout)")
	_ = scoreCmd.MarkFlagRequired("contacts")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	contactsPath, _ := cmd.Flags().GetString("contacts")
	contentsPath, _ := cmd.Flags().GetString("contents")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	if err := checkFormat(format); err != nil {
		return err
	}

	contacts, err := readJSON[[]model.ExtractedContact](contactsPath)
	if err != nil {
		return eris.Wrap(err, "score")
	}
	var contents []model.ParsedContent
	if contentsPath != "" {
		if contents, err = readJSON[[]model.ParsedContent](contentsPath); err != nil {
			return eris.Wrap(err, "score")
		}
	}

	byURL := make(map[string]*model.ParsedContent, len(contents))
	for i := range contents {
		byURL[contents[i].URL] = &contents[i]
	}
	assessments, _ := assess.New(cfg.Assess, lex, assess.WithConcurrency(cfg.Batch.Concurrency)).AssessMany(ctx, contents)
	assessed := make(map[string]*model.ContentQualityAssessment, len(assessments))
	for _, a := range assessments {
		assessed[a.URL] = a
	}

	target := targetFromFlags(cmd)
	inputs := make([]scoring.Input, len(contacts))
	for i, c := range contacts {
		inputs[i] = scoring.Input{Contact: c, Content: byURL[c.SourceURL], Assessment: assessed[c.SourceURL], Target: target}
	}
	scored, failures := scoring.New(cfg.Scoring, lex, scoring.WithConcurrency(cfg.Batch.Concurrency)).ScoreMany(ctx, inputs)
	for _, f := range failures {
		zap.L().Warn("score: skipped contact", zap.String("contact_id", f.Key), zap.Error(f.Err))
	}

	w, err := openOutput(outputPath)
	if err != nil {
		return eris.Wrap(err, "score")
	}
	defer w.Close() //nolint:errcheck

	switch format {
	case "csv":
		return writeContactsCSV(w, scored)
	case "json":
		return writeJSON(w, scored)
	default:
		return writeContactsTable(w, scored)
	}
}

// targetFromFlags returns nil when no target flag is set.
func targetFromFlags(cmd *cobra.Command) *scoring.TargetCriteria {
	var t scoring.TargetCriteria
	if v, _ := cmd.Flags().GetString("beats"); v != "" {
		t.Beats = splitAndTrim(v)
	}
	if v, _ := cmd.Flags().GetString("outlets"); v != "" {
		t.Outlets = splitAndTrim(v)
	}
	if v, _ := cmd.Flags().GetString("languages"); v != "" {
		t.Languages = splitAndTrim(v)
	}
	if len(t.Beats) == 0 && len(t.Outlets) == 0 && len(t.Languages) == 0 {
		return nil
	}
	return &t
}

func writeContactsCSV(w io.Writer, contacts []model.ExtractedContact) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "name", "title", "email", "source_url", "confidence", "relevance", "quality", "status", "is_duplicate"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}
	for _, c := range contacts {
		row := []string{
			c.ID,
			c.Name,
			c.Title,
			c.Email,
			c.SourceURL,
			fmt.Sprintf("%.4f", c.ConfidenceScore),
			fmt.Sprintf("%.4f", c.RelevanceScore),
			fmt.Sprintf("%.4f", c.QualityScore),
			string(c.VerificationStatus),
			fmt.Sprintf("%v", c.IsDuplicate),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "score: flush CSV")
}

func writeContactsTable(w io.Writer, contacts []model.ExtractedContact) error {
	if _, err := fmt.Fprintf(w, "%-12s %-30s %-35s %6s %6s %6s %-13s\n",
		"ID", "Name", "Email", "Conf", "Rel", "Qual", "Status"); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 115)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}
	for _, c := range contacts {
		if _, err := fmt.Fprintf(w, "%-12s %-30s %-35s %6.3f %6.3f %6.3f %-13s\n",
			truncate(c.ID, 12), truncate(c.Name, 30), truncate(c.Email, 35),
			c.ConfidenceScore, c.RelevanceScore, c.QualityScore, c.VerificationStatus); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}
