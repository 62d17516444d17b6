package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/report"
	"github.com/sells-group/contact-intel/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing, viewing, and summarizing stored pipeline runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

// runDetail is a stored run with its stage results.
type runDetail struct {
	*model.Run
	Stages []model.StageResult `json:"stages"`
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		stages, err := st.ListStages(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		return writeJSON(os.Stdout, runDetail{Run: run, Stages: stages})
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := report.NewCollector(st, nil).Collect(ctx, int(since.Hours()))
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatSnapshot(os.Stdout, snap)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, scoring, complete, failed, interrupted, ...)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tLABEL\tSTATUS\tCONTACTS\tSUCCESS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t--------\t-------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		contacts, success := "-", "-"
		if r.Stats != nil {
			contacts = fmt.Sprint(r.Stats.Contacts)
			success = fmt.Sprintf("%.1f%%", r.Stats.SuccessRate*100)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			truncate(r.Label, 30),
			r.Status,
			contacts,
			success,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatSnapshot writes aggregate stats to w.
func formatSnapshot(out io.Writer, s *report.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Runs)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Interrupted:\t%d\n", s.Interrupted)
	_, _ = fmt.Fprintf(w, "In flight:\t%d\n", s.InFlight)
	_, _ = fmt.Fprintf(w, "Fail rate:\t%.1f%%\n", s.FailRate*100)
	if s.Runs > 0 {
		_, _ = fmt.Fprintf(w, "Avg success rate:\t%.1f%%\n", s.AvgSuccessRate*100)
		_, _ = fmt.Fprintf(w, "Avg duplicate rate:\t%.1f%%\n", s.AvgDuplicateRate*100)
		_, _ = fmt.Fprintf(w, "Avg confidence:\t%.3f\n", s.AvgConfidence)
	}
	_, _ = fmt.Fprintf(w, "Contacts:\t%d\n", s.TotalContacts)
	_, _ = fmt.Fprintf(w, "Freelancers:\t%d\n", s.TotalFreelancers)
	_, _ = fmt.Fprintf(w, "Item failures:\t%d\n", s.TotalItemFailures)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
