package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/behaviorlab/framereview/internal/config"
	"github.com/behaviorlab/framereview/internal/logging"
	"github.com/behaviorlab/framereview/internal/player"
	"github.com/behaviorlab/framereview/internal/plots"
	"github.com/behaviorlab/framereview/internal/probe"
	"github.com/behaviorlab/framereview/internal/resolver"
	"github.com/behaviorlab/framereview/internal/review"
	"github.com/behaviorlab/framereview/internal/session"
	"github.com/behaviorlab/framereview/internal/tui"
	"github.com/behaviorlab/framereview/pkg/util"
)

var (
	reviewInput       string
	reviewDescription string
	reviewBlind       bool
	reviewShowTrial   bool
	reviewContinue    bool
	reviewFPS         float64
	reviewClean       bool
	reviewYes         bool
)

var reviewCmd = &cobra.Command{
	Use:   "review [session dir]",
	Short: "Create or resume an annotation session",
	Long: "Creates a session directory (named after the scorer) for the videos " +
		"under --input, or resumes one that already exists. Resume position is " +
		"the first unscored video.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		dir := args[0]

		if reviewClean {
			if err := cleanSession(dir); err != nil {
				return err
			}
		}

		sess, err := openOrCreateSession(cfg, dir)
		if err != nil {
			return err
		}

		return runReview(cmd.Context(), cfg, sess)
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewInput, "input", "i", "", "folder containing the trial videos (required for a new session)")
	reviewCmd.Flags().StringVarP(&reviewDescription, "description", "d", "", "free-text session description")
	reviewCmd.Flags().BoolVar(&reviewBlind, "blind", true, "hide video identities during scoring")
	reviewCmd.Flags().BoolVar(&reviewShowTrial, "show-trial-info", false, "show the video identity even in a blind session")
	reviewCmd.Flags().BoolVarP(&reviewContinue, "continue", "c", false, "require an existing session (error instead of creating)")
	reviewCmd.Flags().Float64Var(&reviewFPS, "fps", 0, "force a frame rate for time-to-frame conversion")
	reviewCmd.Flags().BoolVar(&reviewClean, "clean", false, "delete the session directory and start over")
	reviewCmd.Flags().BoolVarP(&reviewYes, "yes", "y", false, "skip the --clean confirmation prompt")
	reviewCmd.MarkFlagsMutuallyExclusive("continue", "clean")
}

// cleanSession removes an existing session directory after confirmation.
func cleanSession(dir string) error {
	if !util.FileExists(filepath.Join(dir, "config.json")) {
		// Nothing to clean; refuse to delete arbitrary directories.
		return nil
	}
	if !reviewYes {
		fmt.Fprintf(os.Stderr, "delete session %s and all its marks? [y/N] ", dir)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			return fmt.Errorf("clean aborted")
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean session: %w", err)
	}
	log.Info().Str("dir", dir).Msg("session cleaned")
	return nil
}

func openOrCreateSession(cfg *config.Config, dir string) (*session.Session, error) {
	if util.FileExists(filepath.Join(dir, "config.json")) {
		return session.Open(log.Logger, dir, cfg.VideoExtensions)
	}
	if reviewContinue {
		return nil, fmt.Errorf("no session found at %s", dir)
	}
	if reviewInput == "" {
		return nil, fmt.Errorf("--input is required to create a new session")
	}
	return session.Create(log.Logger, dir, reviewInput, session.CreateOptions{
		Description: reviewDescription,
		BlindMode:   reviewBlind,
		FPSOverride: reviewFPS,
		Extensions:  cfg.VideoExtensions,
	})
}

func runReview(ctx context.Context, cfg *config.Config, sess *session.Session) error {
	// The terminal belongs to the TUI from here on; route logs to a file in
	// the session directory instead.
	logFile, err := os.OpenFile(filepath.Join(sess.Dir, "review.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session log: %w", err)
	}
	defer logFile.Close()
	logger := logging.NewLogger(logFile)

	ctrl := review.New(logger, sess, newResolver(logger, sess), playerFactory(logger, cfg))
	defer ctrl.Close()

	done, err := ctrl.Start()
	if err != nil {
		return err
	}
	if done {
		fmt.Printf("all %d videos already scored; results merged to %s\n",
			ctrl.Total(), filepath.Join(sess.Dir, "results.csv"))
		return nil
	}

	showIdentity := !sess.Config.BlindMode || reviewShowTrial
	model := tui.New(logger, ctrl, showIdentity, plotFunc(ctx, logger, cfg, sess))

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("review ui failed: %w", err)
	}

	reviewed, total := sess.Progress()
	fmt.Printf("scored %d of %d videos\n", reviewed, total)
	return nil
}

// newResolver wires the frame resolver with the session's fps override and an
// ffprobe fallback when available.
func newResolver(logger zerolog.Logger, sess *session.Session) *resolver.Resolver {
	var probeFn resolver.ProbeFunc
	if p, err := probe.New(logger); err == nil {
		probeFn = func(path string) (float64, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return p.FPS(ctx, path)
		}
	} else {
		logger.Warn().Err(err).Msg("ffprobe unavailable, fps fallback disabled")
	}
	return resolver.New(logger, sess.Config.FPSOverride, probeFn)
}

func playerFactory(logger zerolog.Logger, cfg *config.Config) review.PlayerFactory {
	return func() (player.Player, error) {
		return player.New(logger, player.Options{
			BinaryPath:     cfg.Player.BinaryPath,
			ExtraOptions:   cfg.Player.ExtraOptions,
			StartupTimeout: time.Duration(cfg.Player.StartupTimeoutSec) * time.Second,
		})
	}
}

// plotFunc builds the TUI plot hook; nil when no python interpreter is
// available so the key is simply absent.
func plotFunc(ctx context.Context, logger zerolog.Logger, cfg *config.Config, sess *session.Session) tui.PlotFunc {
	runner, err := plots.New(logger, cfg.Plots.PythonPath, cfg.Plots.ScriptPath)
	if err != nil {
		logger.Warn().Err(err).Msg("plot generation disabled")
		return nil
	}
	return func() error {
		return runner.Generate(ctx, sess)
	}
}
