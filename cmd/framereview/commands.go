package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/behaviorlab/framereview/internal/config"
	"github.com/behaviorlab/framereview/internal/plots"
	"github.com/behaviorlab/framereview/internal/session"
)

var mergeCmd = &cobra.Command{
	Use:   "merge [session dir]",
	Short: "Regenerate results.csv from the per-trial marks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		sess, err := session.Open(log.Logger, args[0], cfg.VideoExtensions)
		if err != nil {
			return err
		}
		if err := sess.MergeAndWrite(); err != nil {
			return err
		}

		reviewed, total := sess.Progress()
		log.Info().
			Int("scored", reviewed).
			Int("total", total).
			Str("results", filepath.Join(sess.Dir, "results.csv")).
			Msg("results merged")
		return nil
	},
}

var plotsCmd = &cobra.Command{
	Use:   "plots [session dir]",
	Short: "Generate summary plots for a session",
	Long: "Re-merges the results and runs the configured Python plotting script " +
		"against the session directory.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		sess, err := session.Open(log.Logger, args[0], cfg.VideoExtensions)
		if err != nil {
			return err
		}

		runner, err := plots.New(log.Logger, cfg.Plots.PythonPath, cfg.Plots.ScriptPath)
		if err != nil {
			return err
		}
		if err := runner.Generate(cmd.Context(), sess); err != nil {
			return err
		}

		fmt.Printf("summary plots written under %s\n", sess.Dir)
		return nil
	},
}
