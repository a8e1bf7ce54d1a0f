// Package probe extracts container metadata through ffprobe. The frame
// resolver falls back to it when the player cannot report a container fps,
// and the doctor command uses it to validate the toolchain.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/behaviorlab/framereview/pkg/util"
)

// Info contains the container metadata review cares about.
type Info struct {
	FilePath string
	Duration time.Duration
	Width    int
	Height   int
	FPS      float64
	Codec    string
}

// Prober runs ffprobe against video files.
type Prober struct {
	logger      zerolog.Logger
	ffprobePath string
}

// New locates ffprobe in PATH.
func New(logger zerolog.Logger) (*Prober, error) {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	return &Prober{
		logger:      logger.With().Str("component", "probe").Logger(),
		ffprobePath: path,
	}, nil
}

// Probe extracts metadata from a video file
func (p *Prober) Probe(ctx context.Context, filePath string) (*Info, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{
		FilePath: filePath,
	}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(dur * float64(time.Second))
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info.Width = stream.Width
		info.Height = stream.Height
		info.Codec = stream.CodecName
		if stream.RFrameRate != "" {
			info.FPS = util.ParseFrameRate(stream.RFrameRate)
		}
		break
	}

	p.logger.Debug().
		Str("path", filePath).
		Float64("fps", info.FPS).
		Dur("duration", info.Duration).
		Msg("probed video")

	return info, nil
}

// FPS is the resolver-facing shortcut: container fps or an error when the
// stream carries none.
func (p *Prober) FPS(ctx context.Context, filePath string) (float64, error) {
	info, err := p.Probe(ctx, filePath)
	if err != nil {
		return 0, err
	}
	if info.FPS <= 0 {
		return 0, fmt.Errorf("no usable frame rate in %s", filePath)
	}
	return info.FPS, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}
