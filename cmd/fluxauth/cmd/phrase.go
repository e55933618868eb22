package cmd

import (
	"errors"
	"fmt"

	"github.com/layer-3/fluxauth/config"
	"github.com/layer-3/fluxauth/service"
	"github.com/spf13/cobra"
)

var emergency bool

var phraseCmd = &cobra.Command{
	Use:   "phrase",
	Short: "Issue a login phrase into the configured store",
	Long: `Issues a login phrase directly into the shared store without going
through the HTTP server. The configured health gates apply unless
--emergency is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Backend == config.BackendMemory {
			return errors.New("phrase needs a persistent store backend")
		}

		st, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		issuer := service.NewIssuer(st, newGates(cfg.Health), service.WithLogger(newLogger(cfg.Log)))
		issue := issuer.IssuePhrase
		if emergency {
			issue = issuer.IssueEmergencyPhrase
		}
		phrase, err := issue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), phrase.Phrase)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(phraseCmd)
	phraseCmd.Flags().BoolVar(&emergency, "emergency", false, "Issue an emergency phrase")
}
