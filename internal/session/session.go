// Package session owns the durable on-disk state of one review run: the
// session directory with config.json, the per_trial mark files, and the merged
// results.csv. Everything else in the program derives its state from here.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/behaviorlab/framereview/pkg/util"
)

var (
	// ErrNoItemsFound means discovery under the input root yielded no videos.
	ErrNoItemsFound = errors.New("no videos found under input folder")
	// ErrMissingConfig means the directory is not a session (no config.json).
	ErrMissingConfig = errors.New("config.json not found in session directory")
)

const (
	configFile  = "config.json"
	perTrialDir = "per_trial"
	resultsFile = "results.csv"
)

// Item is one source video under review. Identity is the filename stem and is
// unique across the manifest.
type Item struct {
	Identity     string
	SourcePath   string
	RelativePath string // relative to the input folder, empty if underivable
}

// Group returns the parent path segment of the item relative to the input
// root, or "unknown" when no relative path could be determined.
func (it Item) Group() string {
	if it.RelativePath == "" {
		return "unknown"
	}
	parent := filepath.Dir(it.RelativePath)
	if parent == "." || parent == "" {
		return "."
	}
	return filepath.ToSlash(parent)
}

// Config is the persisted session metadata (config.json).
type Config struct {
	SessionID   string   `json:"session_id"`
	InputFolder string   `json:"input_folder"`
	BlindMode   bool     `json:"blind_mode"`
	Description string   `json:"description"`
	FPSOverride float64  `json:"fps_override,omitempty"`
	VideoOrder  []string `json:"video_order"`
}

// Session is one review run: the ordered manifest plus the directory holding
// config and marks. The cursor is not part of the session; resume position is
// always recomputed from the mark files.
type Session struct {
	Dir    string
	Config Config
	Items  []Item

	logger zerolog.Logger
}

// CreateOptions configures a new session.
type CreateOptions struct {
	Description string
	BlindMode   bool
	FPSOverride float64
	// Extensions overrides the default set of eligible video extensions.
	Extensions []string
}

// Create builds a new session directory for the videos under input. Discovery
// order is lexicographic; the manifest is shuffled exactly once here and then
// persisted, so reopening never reshuffles.
func Create(logger zerolog.Logger, dir, input string, opts CreateOptions) (*Session, error) {
	items, err := Discover(input, opts.Extensions)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoItemsFound, input)
	}

	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := util.EnsureDir(filepath.Join(dir, perTrialDir)); err != nil {
		return nil, fmt.Errorf("failed to create per_trial directory: %w", err)
	}

	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})

	s := &Session{
		Dir: dir,
		Config: Config{
			SessionID:   uuid.NewString(),
			InputFolder: input,
			BlindMode:   opts.BlindMode,
			Description: opts.Description,
			FPSOverride: opts.FPSOverride,
		},
		Items:  items,
		logger: logger.With().Str("component", "session").Logger(),
	}

	if err := s.SaveOrder(); err != nil {
		return nil, err
	}
	if err := s.writeReadme(); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("dir", dir).
		Int("videos", len(items)).
		Msg("session created")

	return s, nil
}

// Open resumes an existing session. The stored video order is reconciled
// against a fresh discovery: items gone from disk drop out of navigation,
// newly added items are appended and the updated order re-persisted. A nil
// extensions slice uses the default set.
func Open(logger zerolog.Logger, dir string, extensions []string) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, dir)
		}
		return nil, fmt.Errorf("failed to read session config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse session config: %w", err)
	}

	s := &Session{
		Dir:    dir,
		Config: cfg,
		logger: logger.With().Str("component", "session").Logger(),
	}

	if err := util.EnsureDir(filepath.Join(dir, perTrialDir)); err != nil {
		return nil, err
	}

	discovered, err := Discover(cfg.InputFolder, extensions)
	if err != nil {
		return nil, err
	}

	appended := s.Reconcile(discovered)
	if len(s.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoItemsFound, cfg.InputFolder)
	}
	if appended {
		if err := s.SaveOrder(); err != nil {
			return nil, err
		}
	}

	// README is non-authoritative; recreate when missing.
	if !util.FileExists(filepath.Join(dir, "README.md")) {
		if err := s.writeReadme(); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("dir", dir).
		Int("videos", len(s.Items)).
		Bool("order_updated", appended).
		Msg("session resumed")

	return s, nil
}

// Name returns the scorer name, the base name of the session directory.
func (s *Session) Name() string {
	return filepath.Base(filepath.Clean(s.Dir))
}

func (s *Session) perTrialPath() string {
	return filepath.Join(s.Dir, perTrialDir)
}

func (s *Session) writeReadme() error {
	content := fmt.Sprintf(`# Video Frame Review Session: %s

## Description
%s

## Configuration
- Input folder: %s
- Blind mode: %v
- Created: %s

## Results
- Individual trial annotations: `+"`per_trial/`"+`
- Merged results: `+"`results.csv`"+`
- Summary plots: `+"`summary_plots/`"+` (if generated)
`,
		s.Name(),
		orDefault(s.Config.Description, "No description provided."),
		s.Config.InputFolder,
		s.Config.BlindMode,
		time.Now().Format(time.RFC3339),
	)
	return os.WriteFile(filepath.Join(s.Dir, "README.md"), []byte(content), 0644)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
