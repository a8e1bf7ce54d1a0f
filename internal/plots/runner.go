// Package plots shells out to the Python summary-plot script. Plot rendering
// stays in Python where the plotting stack lives; this side only guarantees a
// fresh results.csv and a clean error when the script fails.
package plots

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/behaviorlab/framereview/internal/session"
)

// ErrPlotGeneration wraps any script failure so callers can distinguish a
// plotting problem from a merge problem.
var ErrPlotGeneration = errors.New("summary plot generation failed")

// Runner invokes the external plotting script for a session.
type Runner struct {
	logger     zerolog.Logger
	pythonPath string
	scriptPath string
	timeout    time.Duration
}

// New validates that the configured python interpreter exists in PATH.
func New(logger zerolog.Logger, pythonPath, scriptPath string) (*Runner, error) {
	resolved, err := exec.LookPath(pythonPath)
	if err != nil {
		return nil, fmt.Errorf("python interpreter %q not found in PATH: %w", pythonPath, err)
	}
	return &Runner{
		logger:     logger.With().Str("component", "plots").Logger(),
		pythonPath: resolved,
		scriptPath: scriptPath,
		timeout:    2 * time.Minute,
	}, nil
}

// Generate re-merges the session results and runs the plot script against the
// session directory. The merge always runs first so plots never render stale
// data.
func (r *Runner) Generate(ctx context.Context, sess *session.Session) error {
	if err := sess.MergeAndWrite(); err != nil {
		return fmt.Errorf("failed to refresh results before plotting: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := []string{
		r.scriptPath,
		sess.Dir,
		"--video-folder", sess.Config.InputFolder,
	}

	r.logger.Info().
		Str("script", r.scriptPath).
		Str("session", sess.Dir).
		Msg("generating summary plots")

	cmd := exec.CommandContext(ctx, r.pythonPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(output))
		r.logger.Error().Err(err).Str("output", trimmed).Msg("plot script failed")
		if trimmed != "" {
			return fmt.Errorf("%w: %s", ErrPlotGeneration, trimmed)
		}
		return fmt.Errorf("%w: %v", ErrPlotGeneration, err)
	}

	r.logger.Info().Msg("summary plots written")
	return nil
}
