// Package review sequences the manifest: it owns the cursor, drives the
// player through load/seek on every move, and records marks before advancing.
package review

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/behaviorlab/framereview/internal/player"
	"github.com/behaviorlab/framereview/internal/resolver"
	"github.com/behaviorlab/framereview/internal/session"
)

// ErrIndexOutOfRange rejects a jump outside [1, N]; prior state is unchanged.
var ErrIndexOutOfRange = errors.New("video index out of range")

// PlayerFactory creates a fresh player instance. The controller always tears
// down the previous instance, even on error, before invoking this again, so
// decoder resources never leak across loads.
type PlayerFactory func() (player.Player, error)

// Controller is the navigation state machine over the session manifest. All
// operations are issued from one interactive goroutine; loads are synchronous.
type Controller struct {
	logger    zerolog.Logger
	sess      *session.Session
	res       *resolver.Resolver
	newPlayer PlayerFactory

	player    player.Player
	cursor    int
	completed bool // finalization has run at least once
}

// New builds a controller; no video is loaded until Start.
func New(logger zerolog.Logger, sess *session.Session, res *resolver.Resolver, factory PlayerFactory) *Controller {
	return &Controller{
		logger:    logger.With().Str("component", "review").Logger(),
		sess:      sess,
		res:       res,
		newPlayer: factory,
		cursor:    0,
	}
}

// Session exposes the underlying session for status display and finalization.
func (c *Controller) Session() *session.Session { return c.sess }

// CurrentIndex is the zero-based cursor.
func (c *Controller) CurrentIndex() int { return c.cursor }

// Total is the manifest length.
func (c *Controller) Total() int { return len(c.sess.Items) }

// Current returns the item under the cursor.
func (c *Controller) Current() session.Item { return c.sess.Items[c.cursor] }

// Completed reports whether the whole manifest has been reviewed and
// finalization has run.
func (c *Controller) Completed() bool { return c.completed }

// Start resumes the session at the first unmarked item and loads it. When
// every item is already reviewed it finalizes immediately without touching
// the player and reports done=true. A video that fails to load is skipped in
// favor of the next unmarked one; load failures never abort the session, so
// the worst case is starting parked on the bad item with no player.
func (c *Controller) Start() (done bool, err error) {
	idx, ok := c.FindFirstUnmarked()
	if !ok {
		c.logger.Info().Msg("all videos already scored")
		c.cursor = len(c.sess.Items) - 1
		return true, c.finalize()
	}
	c.cursor = idx

	err = c.loadCurrent()
	for attempts := 0; errors.Is(err, player.ErrLoadFailure) && attempts < len(c.sess.Items); attempts++ {
		prev := c.cursor
		err = c.JumpToNextUnmarked()
		if c.cursor == prev {
			// No other unmarked item to fall back to.
			return false, nil
		}
	}
	if errors.Is(err, player.ErrLoadFailure) {
		return false, nil
	}
	return false, err
}

// FindFirstUnmarked scans the whole manifest in order for the first item
// without a mark file.
func (c *Controller) FindFirstUnmarked() (int, bool) {
	for i, it := range c.sess.Items {
		if c.sess.IsUnmarked(it) {
			return i, true
		}
	}
	return 0, false
}

// Advance moves to the next item. At the last item it is a plain no-op; only
// the post-mark advance in advanceAfterMark triggers finalization.
func (c *Controller) Advance() error {
	if c.cursor >= len(c.sess.Items)-1 {
		return nil
	}
	c.cursor++
	return c.loadCurrent()
}

// Retreat moves to the previous item; no-op at the first one, player
// untouched.
func (c *Controller) Retreat() error {
	if c.cursor == 0 {
		return nil
	}
	c.cursor--
	return c.loadCurrent()
}

// JumpTo navigates to a 1-based index.
func (c *Controller) JumpTo(oneBased int) error {
	if oneBased < 1 || oneBased > len(c.sess.Items) {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrIndexOutOfRange, oneBased, len(c.sess.Items))
	}
	c.cursor = oneBased - 1
	return c.loadCurrent()
}

// JumpToNextUnmarked scans forward from cursor+1, wrapping to [0, cursor).
// Items with a NoEvent sentinel count as reviewed and are skipped. No-op when
// nothing is unmarked.
func (c *Controller) JumpToNextUnmarked() error {
	n := len(c.sess.Items)
	for off := 1; off < n; off++ {
		idx := (c.cursor + off) % n
		if c.sess.IsUnmarked(c.sess.Items[idx]) {
			c.cursor = idx
			return c.loadCurrent()
		}
	}
	return nil
}

// MarkCurrentFrame resolves the frame under review, records it durably, and
// advances. The frame is read on demand at the moment of marking; any cached
// observer value is ignored. An unresolvable frame degrades to 0 with a
// warning rather than blocking the mark.
func (c *Controller) MarkCurrentFrame() (done bool, err error) {
	it := c.Current()

	frame := 0
	if c.player != nil {
		f, err := c.res.CurrentFrame(c.player, it.SourcePath)
		if err != nil {
			c.logger.Warn().Err(err).Str("trial", it.Identity).Msg("frame unresolvable, marking frame 0")
		}
		frame = f
	} else {
		c.logger.Warn().Str("trial", it.Identity).Msg("video not loaded, marking frame 0")
	}

	if err := c.sess.MarkFrame(it, frame); err != nil {
		return false, err
	}
	return c.advanceAfterMark()
}

// MarkCurrentNoEvent records the explicit no-event sentinel and advances.
func (c *Controller) MarkCurrentNoEvent() (done bool, err error) {
	if err := c.sess.MarkNoEvent(c.Current()); err != nil {
		return false, err
	}
	return c.advanceAfterMark()
}

// advanceAfterMark steps past a just-marked item. Completing the last item
// parks the cursor at N-1 (the reviewer can keep revisiting) and runs
// finalization instead of loading a video.
func (c *Controller) advanceAfterMark() (done bool, err error) {
	if c.cursor < len(c.sess.Items)-1 {
		c.cursor++
		return false, c.loadCurrent()
	}
	return true, c.finalize()
}

// loadCurrent tears down the previous player, creates a fresh one, loads the
// item under the cursor, and restores a Frame(n) mark by seeking. NoEvent and
// Unset leave playback at the start. A load failure leaves the cursor where
// it is; the caller decides where to navigate next.
func (c *Controller) loadCurrent() error {
	c.teardownPlayer()

	it := c.Current()
	c.logger.Debug().Int("index", c.cursor).Str("trial", it.Identity).Msg("loading video")

	p, err := c.newPlayer()
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	c.player = p

	if err := p.Load(it.SourcePath); err != nil {
		c.teardownPlayer()
		c.logger.Warn().Err(err).Str("trial", it.Identity).Msg("video failed to load, skipping")
		return fmt.Errorf("%w: %s", player.ErrLoadFailure, it.Identity)
	}

	// The player's default q would kill the window mid-review; quitting
	// belongs to the terminal.
	if err := p.BindKey("q", "ignore"); err != nil {
		c.logger.Warn().Err(err).Msg("could not rebind player quit key")
	}

	c.restoreMark(it)
	return nil
}

// restoreMark seeks to a previously recorded frame so re-review resumes where
// judgment landed. Missing fps skips the seek; it never fails the load.
func (c *Controller) restoreMark(it session.Item) {
	mark := c.sess.ReadMark(it)
	if mark.State != session.MarkFrame {
		return
	}
	fps, err := c.res.MarkFPS(c.player, it.SourcePath)
	if err != nil {
		c.logger.Warn().Err(err).Str("trial", it.Identity).Msg("fps unavailable, cannot restore mark position")
		return
	}
	target, err := resolver.SeekTarget(mark.Frame, fps)
	if err != nil {
		return
	}
	if err := c.player.SeekAbsolute(target); err != nil {
		c.logger.Warn().Err(err).Str("trial", it.Identity).Msg("seek to restored mark failed")
	}
}

// finalize regenerates results.csv. Idempotent; safe to run on every
// completion of the last item.
func (c *Controller) finalize() error {
	c.completed = true
	if err := c.sess.MergeAndWrite(); err != nil {
		return fmt.Errorf("failed to merge results: %w", err)
	}
	c.logger.Info().Msg("session complete, results merged")
	return nil
}

// Close tears down the player. Call on exit.
func (c *Controller) Close() {
	c.teardownPlayer()
}

func (c *Controller) teardownPlayer() {
	if c.player == nil {
		return
	}
	if err := c.player.Terminate(); err != nil {
		c.logger.Warn().Err(err).Msg("player teardown failed")
	}
	c.player = nil
}

// Player exposes the live player for key binding and playback control by the
// front-end; nil when no video is loaded.
func (c *Controller) Player() player.Player { return c.player }
