// Package resolver reconciles the player's time position, native frame
// counter, and container fps into one authoritative integer frame index.
package resolver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/behaviorlab/framereview/pkg/util"
)

// ErrFrameUnresolvable means no frame index could be established from any
// source. Callers treat it as frame 0 and surface a warning; the resolver
// never fabricates a confident value.
var ErrFrameUnresolvable = errors.New("current frame unresolvable")

// Querier is the read-only slice of the player capability the resolver needs.
type Querier interface {
	GetPropertyFloat(name string) (float64, error)
	ExpandText(template string) (string, error)
}

// ProbeFunc detects container fps out-of-band (ffprobe). Optional.
type ProbeFunc func(path string) (float64, error)

// Resolver turns player state into frame indices. One resolver serves the
// whole session; detected fps is cached per video path since the container
// never changes mid-review.
type Resolver struct {
	logger      zerolog.Logger
	fpsOverride float64
	probeFPS    ProbeFunc
	fpsCache    map[string]float64
}

// New creates a resolver. fpsOverride > 0 forces the time-based calculation
// for every frame read; probe may be nil.
func New(logger zerolog.Logger, fpsOverride float64, probe ProbeFunc) *Resolver {
	return &Resolver{
		logger:      logger.With().Str("component", "resolver").Logger(),
		fpsOverride: fpsOverride,
		probeFPS:    probe,
		fpsCache:    make(map[string]float64),
	}
}

// FPSOverride reports the configured override, 0 when unset.
func (r *Resolver) FPSOverride() float64 { return r.fpsOverride }

// CurrentFrame resolves the authoritative frame index for the video at path
// currently loaded in the player.
//
// With an fps override the frame is always round(time-pos * override); the
// player-native counter is deliberately ignored. Otherwise the native
// estimated-frame-number is preferred, with round(time-pos * detected fps) as
// the fallback. Rounding is half away from zero throughout (util.RoundFrame).
func (r *Resolver) CurrentFrame(q Querier, path string) (int, error) {
	if r.fpsOverride > 0 {
		timePos, err := q.GetPropertyFloat("time-pos")
		if err != nil {
			return 0, fmt.Errorf("%w: time-pos unavailable with fps override: %v", ErrFrameUnresolvable, err)
		}
		frame := util.RoundFrame(timePos * r.fpsOverride)
		r.logger.Debug().
			Float64("time_pos", timePos).
			Float64("fps_override", r.fpsOverride).
			Int("frame", frame).
			Msg("frame from override")
		return frame, nil
	}

	if est, err := q.GetPropertyFloat("estimated-frame-number"); err == nil {
		return util.RoundFrame(est), nil
	}

	timePos, terr := q.GetPropertyFloat("time-pos")
	fps, ferr := r.DetectedFPS(q, path)
	if terr != nil || ferr != nil {
		return 0, fmt.Errorf("%w: no native counter, time-pos err %v, fps err %v",
			ErrFrameUnresolvable, terr, ferr)
	}

	frame := util.RoundFrame(timePos * fps)
	r.logger.Debug().
		Float64("time_pos", timePos).
		Float64("fps", fps).
		Int("frame", frame).
		Msg("frame from time position")
	return frame, nil
}

// DetectedFPS queries the container fps from the player, consulting the probe
// when the player cannot report one. Values <= 0 are treated as unavailable.
func (r *Resolver) DetectedFPS(q Querier, path string) (float64, error) {
	if fps, ok := r.fpsCache[path]; ok {
		return fps, nil
	}

	if text, err := q.ExpandText("${container-fps}"); err == nil {
		if fps, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil && fps > 0 {
			r.fpsCache[path] = fps
			return fps, nil
		}
	}

	if r.probeFPS != nil {
		fps, err := r.probeFPS(path)
		if err == nil && fps > 0 {
			r.logger.Debug().Str("path", path).Float64("fps", fps).Msg("fps from probe fallback")
			r.fpsCache[path] = fps
			return fps, nil
		}
	}

	return 0, fmt.Errorf("container fps unavailable for %s", path)
}

// MarkFPS returns the fps to use for restoring a mark by seeking: the
// override when set, otherwise the detected fps.
func (r *Resolver) MarkFPS(q Querier, path string) (float64, error) {
	if r.fpsOverride > 0 {
		return r.fpsOverride, nil
	}
	return r.DetectedFPS(q, path)
}

// SeekTarget converts a frame index back to a seek time in seconds. The seek
// must be skipped when fps is unavailable.
func SeekTarget(frame int, fps float64) (float64, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("cannot compute seek target without fps")
	}
	if frame < 0 {
		return 0, fmt.Errorf("frame must be non-negative, got %d", frame)
	}
	return float64(frame) / fps, nil
}
