package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/freelance"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/store"
)

var freelancerCmd = &cobra.Command{
	Use:   "freelancer",
	Short: "Profile a contact's outlet relationships",
	Long: `Classifies a contact's relationship with each outlet they have
bylines at and decides whether they work freelance.

With --update, new byline batches are folded into a profile: the one
just built from --history, or the stored profile when --history is
omitted.

Examples:
  contact-intel freelancer --contact jane.json --history jane-history.json
  contact-intel freelancer --contact jane.json --update new-bylines.json --save`,
	RunE: runFreelancer,
}

func init() {
	f := freelancerCmd.Flags()
	f.String("contact", "", "path to a JSON contact (required)")
	f.String("history", "", "path to a JSON array of outlet histories")
	f.String("update", "", "path to a JSON array of new outlet byline batches")
	f.Bool("save", false, "save the profile to the store")
	f.String("output", "", "output file path (default: stdout)")
	_ = freelancerCmd.MarkFlagRequired("contact")

	rootCmd.AddCommand(freelancerCmd)
}

func runFreelancer(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	contactPath, _ := cmd.Flags().GetString("contact")
	historyPath, _ := cmd.Flags().GetString("history")
	updatePath, _ := cmd.Flags().GetString("update")
	save, _ := cmd.Flags().GetBool("save")
	outputPath, _ := cmd.Flags().GetString("output")

	if historyPath == "" && updatePath == "" {
		return eris.New("freelancer: one of --history or --update is required")
	}

	contact, err := readJSON[model.Contact](contactPath)
	if err != nil {
		return eris.Wrap(err, "freelancer")
	}
	log := zap.L().With(zap.String("command", "freelancer"), zap.String("contact_id", contact.ID))
	a := freelance.New(cfg.Freelance, lex)

	var st store.Store
	if save || historyPath == "" {
		if st, err = initStore(ctx); err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
	}

	var profile *model.FreelancerProfile
	if historyPath != "" {
		histories, err := readJSON[[]model.OutletHistory](historyPath)
		if err != nil {
			return eris.Wrap(err, "freelancer")
		}
		if profile, err = a.Analyze(contact, histories); err != nil {
			return eris.Wrap(err, "freelancer: analyze")
		}
	} else {
		if profile, err = st.GetProfile(ctx, contact.ID); err != nil {
			return eris.Wrap(err, "freelancer: load stored profile")
		}
	}

	if updatePath != "" {
		batches, err := readJSON[[]model.OutletHistory](updatePath)
		if err != nil {
			return eris.Wrap(err, "freelancer")
		}
		if profile, err = a.UpdateProfile(profile, contact, batches); err != nil {
			return eris.Wrap(err, "freelancer: update")
		}
		log.Info("freelancer: profile updated", zap.Int("batches", len(batches)))
	}

	if save {
		if err := st.SaveProfiles(ctx, []*model.FreelancerProfile{profile}); err != nil {
			return eris.Wrap(err, "freelancer: save")
		}
		log.Info("freelancer: profile saved")
	}

	w, err := openOutput(outputPath)
	if err != nil {
		return eris.Wrap(err, "freelancer")
	}
	defer w.Close() //nolint:errcheck
	return writeJSON(w, profile)
}
