// Package player drives an external mpv process over its JSON IPC socket.
// The rest of the program depends only on the Player interface; property
// observer pushes are a best-effort cache hint and every authoritative read
// goes through a synchronous query.
package player

import "errors"

var (
	// ErrLoadFailure means the player could not open a video; the caller
	// skips the item rather than aborting the session.
	ErrLoadFailure = errors.New("player failed to load video")
	// ErrPropertyUnavailable means the queried property is not supported or
	// has no value yet.
	ErrPropertyUnavailable = errors.New("player property unavailable")
)

// ObserverFunc receives pushed property values. Called from the player's
// event loop; implementations must not block.
type ObserverFunc func(value interface{})

// Player is the narrow capability interface the review core needs from the
// embedded media engine.
type Player interface {
	// Load opens a video and blocks until it is ready or fails.
	Load(path string) error
	Pause(paused bool) error
	// SeekAbsolute seeks to an absolute position in seconds, frame-exact.
	SeekAbsolute(seconds float64) error
	// GetPropertyFloat performs a synchronous property query ("time-pos",
	// "estimated-frame-number", ...).
	GetPropertyFloat(name string) (float64, error)
	// ExpandText expands an mpv property template such as "${container-fps}".
	ExpandText(template string) (string, error)
	// ObserveProperty registers a push callback for a property.
	ObserveProperty(name string, fn ObserverFunc) error
	// BindKey binds a key combo to a player-side action.
	BindKey(combo, action string) error
	// StepFrame advances (or rewinds) playback by exactly one frame.
	StepFrame(forward bool) error
	SetSpeed(factor float64) error
	// Terminate tears the player down and reaps the process. Safe to call
	// more than once.
	Terminate() error
}
