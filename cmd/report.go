package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/report"
	"github.com/sells-group/contact-intel/internal/resilience"
	"github.com/sells-group/contact-intel/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a run and optionally export it to XLSX",
	Long: `Prints run statistics from a run output file (--run) or from a
stored run (--run-id).

Examples:
  contact-intel report --run run.json
  contact-intel report --run run.json --xlsx run.xlsx
  contact-intel report --run-id 3f1c... --format json`,
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.String("run", "", "path to a run output file written by run --output")
	f.String("run-id", "", "ID of a stored run")
	f.String("xlsx", "", "write a workbook to this path")
	f.String("format", "table", "output format: table or json")
	reportCmd.MarkFlagsMutuallyExclusive("run", "run-id")
	reportCmd.MarkFlagsOneRequired("run", "run-id")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	runPath, _ := cmd.Flags().GetString("run")
	runID, _ := cmd.Flags().GetString("run-id")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return eris.Errorf("report: --format must be table or json (got %q)", format)
	}

	var (
		in    report.Input
		stats model.RunStats
	)
	if runPath != "" {
		res, err := readJSON[runResult](runPath)
		if err != nil {
			return eris.Wrap(err, "report")
		}
		in = reportInputFromResult(res)
		stats = report.Compute(in)
	} else {
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if in, stats, err = loadStoredRun(ctx, st, runID); err != nil {
			return err
		}
	}

	if xlsxPath != "" {
		f, err := os.Create(xlsxPath)
		if err != nil {
			return eris.Wrapf(err, "report: create %s", xlsxPath)
		}
		defer f.Close() //nolint:errcheck
		if err := report.WriteXLSX(f, in, stats); err != nil {
			return err
		}
	}

	if format == "json" {
		return writeJSON(os.Stdout, stats)
	}
	formatStats(os.Stdout, stats)
	return nil
}

// reportInputFromResult rebuilds report input from a run output file.
func reportInputFromResult(res runResult) report.Input {
	if res.Output == nil {
		return report.Input{Failures: failuresFromRecords(res.Failures)}
	}
	in := res.Output.ReportInput()
	in.Failures = failuresFromRecords(res.Failures)
	return in
}

func failuresFromRecords(records []resilience.FailureRecord) []*resilience.BatchItemError {
	out := make([]*resilience.BatchItemError, len(records))
	for i, r := range records {
		out[i] = &resilience.BatchItemError{Stage: r.Stage, Index: -1, Key: r.ItemKey, Err: eris.New(r.Error)}
	}
	return out
}

// loadStoredRun reads a stored run's outputs. Counts that are not stored
// per item come from the run's saved stats.
func loadStoredRun(ctx context.Context, st store.Store, runID string) (report.Input, model.RunStats, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return report.Input{}, model.RunStats{}, eris.Wrap(err, "report")
	}
	contacts, err := st.ListContacts(ctx, runID)
	if err != nil {
		return report.Input{}, model.RunStats{}, eris.Wrap(err, "report")
	}
	groups, err := st.ListDuplicateGroups(ctx, runID)
	if err != nil {
		return report.Input{}, model.RunStats{}, eris.Wrap(err, "report")
	}
	records, err := st.ListFailures(ctx, runID)
	if err != nil {
		return report.Input{}, model.RunStats{}, eris.Wrap(err, "report")
	}

	det := &model.DetectionResult{DuplicateGroups: groups}
	var profiles []*model.FreelancerProfile
	for _, c := range contacts {
		if c.IsDuplicate {
			det.Duplicates = append(det.Duplicates, c)
			continue
		}
		det.UniqueContacts = append(det.UniqueContacts, c)
		p, err := st.GetProfile(ctx, c.ID)
		switch {
		case store.IsNotFound(err):
		case err != nil:
			return report.Input{}, model.RunStats{}, eris.Wrap(err, "report")
		default:
			profiles = append(profiles, p)
		}
	}

	in := report.Input{
		Scored:    contacts,
		Detection: det,
		Profiles:  profiles,
		Failures:  failuresFromRecords(records),
	}
	if run.Stats != nil {
		return in, *run.Stats, nil
	}
	return in, report.Compute(in), nil
}

func formatStats(out io.Writer, s model.RunStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, kv := range report.SummaryRows(s) {
		_, _ = fmt.Fprintf(w, "%s:\t%s\n", kv[0], kv[1])
	}
	_ = w.Flush()
}
