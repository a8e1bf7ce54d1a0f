package util

import (
	"math"
	"strconv"
	"strings"
)

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30000/1001")
func ParseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// RoundFrame converts a fractional frame position to an integer frame index.
// Rounding is half away from zero (math.Round); the same rule is applied
// everywhere a time position is converted to a frame number so that marks are
// reproducible across runs. Negative positions clamp to frame 0.
func RoundFrame(f float64) int {
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	return int(math.Round(f))
}
