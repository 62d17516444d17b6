package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/pipeline"
	"github.com/sells-group/contact-intel/internal/resilience"
	"github.com/sells-group/contact-intel/internal/scoring"
	"github.com/sells-group/contact-intel/internal/store"
)

// runResult is the JSON document written by run and read back by report.
type runResult struct {
	*pipeline.Output
	Failures []resilience.FailureRecord `json:"failures"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline over one batch",
	Long: `Assesses source pages, scores contacts, collapses duplicates and
profiles freelancers for contacts with byline history.

Examples:
  contact-intel run --contents contents.json --contacts contacts.json
  contact-intel run --contents contents.json --contacts contacts.json \
    --histories histories.json --save --output run.json`,
	RunE: runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.String("contents", "", "path to a JSON array of parsed source pages")
	f.String("contacts", "", "path to a JSON array of extracted contacts (required)")
	f.String("histories", "", "path to a JSON object of outlet histories keyed by contact ID")
	f.String("target", "", "path to JSON target criteria for relevance scoring")
	f.String("label", "", "label stored with the run")
	f.Bool("save", false, "persist the run and its outputs to the store")
	f.String("output", "", "output file path (default: stdout)")
	_ = runCmd.MarkFlagRequired("contacts")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	contentsPath, _ := cmd.Flags().GetString("contents")
	contactsPath, _ := cmd.Flags().GetString("contacts")
	historiesPath, _ := cmd.Flags().GetString("histories")
	targetPath, _ := cmd.Flags().GetString("target")
	label, _ := cmd.Flags().GetString("label")
	save, _ := cmd.Flags().GetBool("save")
	outputPath, _ := cmd.Flags().GetString("output")

	in, err := loadRunInput(contentsPath, contactsPath, historiesPath, targetPath)
	if err != nil {
		return eris.Wrap(err, "run")
	}
	in.Label = label

	var st store.Store
	if save {
		if st, err = initStore(ctx); err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
	}

	out, runErr := pipeline.New(cfg, lex, st).Run(ctx, in)
	if out == nil {
		return runErr
	}
	if runErr != nil {
		zap.L().Error("run: pipeline did not complete", zap.String("run_id", out.RunID), zap.Error(runErr))
	}

	w, err := openOutput(outputPath)
	if err != nil {
		return eris.Wrap(err, "run")
	}
	defer w.Close() //nolint:errcheck
	if err := writeJSON(w, runResult{Output: out, Failures: out.FailureRecords(time.Now())}); err != nil {
		return err
	}
	return runErr
}

func loadRunInput(contentsPath, contactsPath, historiesPath, targetPath string) (pipeline.Input, error) {
	var (
		in  pipeline.Input
		err error
	)
	if in.Contacts, err = readJSON[[]model.ExtractedContact](contactsPath); err != nil {
		return in, err
	}
	if contentsPath != "" {
		if in.Contents, err = readJSON[[]model.ParsedContent](contentsPath); err != nil {
			return in, err
		}
	}
	if historiesPath != "" {
		if in.Histories, err = readJSON[map[string][]model.OutletHistory](historiesPath); err != nil {
			return in, err
		}
	}
	if targetPath != "" {
		t, err := readJSON[scoring.TargetCriteria](targetPath)
		if err != nil {
			return in, err
		}
		in.Target = &t
	}
	return in, nil
}
