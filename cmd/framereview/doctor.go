package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/behaviorlab/framereview/internal/config"
	"github.com/behaviorlab/framereview/internal/player"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the external tools are installed and usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		failures := 0

		if err := checkBinary(cfg.Player.BinaryPath, "--version"); err != nil {
			failures++
			fmt.Printf("✗ mpv: %v\n  %s\n", err, installHint("mpv"))
		} else {
			fmt.Printf("✓ mpv (%s): %s\n", cfg.Player.BinaryPath, binaryVersion(cfg.Player.BinaryPath, "--version"))
			if err := checkMpvIPC(cfg); err != nil {
				failures++
				fmt.Printf("✗ mpv ipc: %v\n", err)
			} else {
				fmt.Println("✓ mpv ipc: idle instance started and terminated")
			}
		}

		if err := checkBinary("ffprobe", "-version"); err != nil {
			failures++
			fmt.Printf("✗ ffprobe: %v\n  %s\n", err, installHint("ffmpeg"))
			fmt.Println("  frame rate detection will rely on the player alone")
		} else {
			fmt.Printf("✓ ffprobe: %s\n", binaryVersion("ffprobe", "-version"))
		}

		if err := checkBinary(cfg.Plots.PythonPath, "--version"); err != nil {
			fmt.Printf("- python (%s): %v; summary plots disabled\n", cfg.Plots.PythonPath, err)
		} else {
			fmt.Printf("✓ python (%s): %s\n", cfg.Plots.PythonPath, binaryVersion(cfg.Plots.PythonPath, "--version"))
		}

		if failures > 0 {
			return fmt.Errorf("%d required tool(s) missing", failures)
		}
		fmt.Println("everything looks good")
		return nil
	},
}

// checkMpvIPC launches a throwaway idle mpv and tears it down, proving the
// control socket works end to end.
func checkMpvIPC(cfg *config.Config) error {
	p, err := player.New(log.Logger, player.Options{
		BinaryPath:     cfg.Player.BinaryPath,
		ExtraOptions:   cfg.Player.ExtraOptions,
		StartupTimeout: time.Duration(cfg.Player.StartupTimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}
	return p.Terminate()
}

// checkBinary verifies the binary exists in PATH and answers a version query.
func checkBinary(name, versionFlag string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("not found in PATH")
	}
	if err := exec.Command(path, versionFlag).Run(); err != nil {
		return fmt.Errorf("found at %s but not runnable: %v", path, err)
	}
	return nil
}

// binaryVersion returns the first line of the version output, best effort.
func binaryVersion(name, versionFlag string) string {
	out, err := exec.Command(name, versionFlag).Output()
	if err != nil {
		return "unknown version"
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line
}

func installHint(pkg string) string {
	switch runtime.GOOS {
	case "darwin":
		return fmt.Sprintf("install with: brew install %s", pkg)
	case "linux":
		return fmt.Sprintf("install with your package manager, e.g. apt install %s", pkg)
	case "windows":
		return fmt.Sprintf("install with: scoop install %s (or download from the project site)", pkg)
	default:
		return fmt.Sprintf("install %s from the project site", pkg)
	}
}
