package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration. Session state lives in the
// session directory (config.json); this file only carries machine-local
// settings like binary paths and playback tuning.
type Config struct {
	// Player settings
	Player PlayerConfig `yaml:"player"`

	// Discovery settings
	VideoExtensions []string `yaml:"video_extensions"`

	// Plot generation settings
	Plots PlotsConfig `yaml:"plots"`
}

type PlayerConfig struct {
	BinaryPath string `yaml:"binary_path"`
	// Extra mpv options appended at startup (key=value form, no leading dashes)
	ExtraOptions []string `yaml:"extra_options"`
	// Seconds to wait for the IPC socket to come up
	StartupTimeoutSec int `yaml:"startup_timeout_sec"`
}

type PlotsConfig struct {
	PythonPath string `yaml:"python_path"`
	ScriptPath string `yaml:"script_path"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			BinaryPath:        "mpv",
			StartupTimeoutSec: 10,
		},
		VideoExtensions: []string{".avi", ".mp4", ".mov", ".mkv"},
		Plots: PlotsConfig{
			PythonPath: "python3",
			ScriptPath: "generate_summary_plots.py",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./framereview.yaml",
		"./framereview.yml",
		filepath.Join(os.Getenv("HOME"), ".framereview", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
