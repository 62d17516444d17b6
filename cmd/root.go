package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/config"
	"github.com/sells-group/contact-intel/internal/lexicon"
)

var (
	cfg *config.Config
	lex *lexicon.Lexicon
)

var rootCmd = &cobra.Command{
	Use:   "contact-intel",
	Short: "Media contact intelligence pipeline",
	Long:  "Assesses source pages, scores extracted journalist contacts, collapses duplicates and profiles freelancers across outlets.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		l, err := lexicon.Load(cfg.Lexicon.Path)
		if err != nil {
			return eris.Wrap(err, "load lexicon")
		}
		lex = l

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
