package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/behaviorlab/framereview/internal/config"
	"github.com/behaviorlab/framereview/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "framereview",
	Short: "framereview - blind video frame annotation for behavioral scoring",
	Long: "A frame-accurate video review tool: presents trial videos in a stable " +
		"shuffled order, records one frame judgment per video, and merges the " +
		"marks into a results table.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./framereview.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(plotsCmd)
	rootCmd.AddCommand(doctorCmd)
}
