package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contact-intel/internal/dedupe"
	"github.com/sells-group/contact-intel/internal/model"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Group duplicate contacts and merge each group",
	RunE: func(cmd *cobra.Command, _ []string) error {
		contactsPath, _ := cmd.Flags().GetString("contacts")
		outputPath, _ := cmd.Flags().GetString("output")

		contacts, err := readJSON[[]model.ExtractedContact](contactsPath)
		if err != nil {
			return eris.Wrap(err, "dedupe")
		}
		res := dedupe.New(cfg.Dedupe, lex).Detect(contacts)

		w, err := openOutput(outputPath)
		if err != nil {
			return eris.Wrap(err, "dedupe")
		}
		defer w.Close() //nolint:errcheck
		return writeJSON(w, res)
	},
}

func init() {
	dedupeCmd.Flags().String("contacts", "", "path to a JSON array of scored contacts (required)")
	dedupeCmd.Flags().String("output", "", "output file path (default: stdout)")
	_ = dedupeCmd.MarkFlagRequired("contacts")
	rootCmd.AddCommand(dedupeCmd)
}
