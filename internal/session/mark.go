package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/behaviorlab/framereview/pkg/util"
)

// MarkState distinguishes "no file written" from the explicit no-event
// sentinel. Both are terminal judgments for an item but only Unset means the
// item has not been reviewed.
type MarkState int

const (
	MarkUnset MarkState = iota
	MarkFrame
	MarkNoEvent
)

// Mark is the persisted human judgment for one item.
type Mark struct {
	State MarkState
	Frame int
}

func (m Mark) String() string {
	switch m.State {
	case MarkFrame:
		return strconv.Itoa(m.Frame)
	case MarkNoEvent:
		return "NaN"
	default:
		return "unset"
	}
}

// noEventSentinel is the literal written for an explicit "no event" judgment.
const noEventSentinel = "NaN"

func (s *Session) markPath(identity string) string {
	return filepath.Join(s.perTrialPath(), identity+".txt")
}

// MarkFrame records frame n for the item, overwriting any prior mark. The
// write is atomic so a concurrent reader never observes a half-written record.
func (s *Session) MarkFrame(it Item, frame int) error {
	if frame < 0 {
		return fmt.Errorf("frame must be non-negative, got %d", frame)
	}
	if err := util.AtomicWriteFile(s.markPath(it.Identity), []byte(strconv.Itoa(frame)), 0644); err != nil {
		return fmt.Errorf("failed to write mark for %s: %w", it.Identity, err)
	}
	s.logger.Info().Str("trial", it.Identity).Int("frame", frame).Msg("mark recorded")
	return nil
}

// MarkNoEvent records the explicit no-event sentinel, overwriting any prior
// mark.
func (s *Session) MarkNoEvent(it Item) error {
	if err := util.AtomicWriteFile(s.markPath(it.Identity), []byte(noEventSentinel), 0644); err != nil {
		return fmt.Errorf("failed to write mark for %s: %w", it.Identity, err)
	}
	s.logger.Info().Str("trial", it.Identity).Msg("no-event recorded")
	return nil
}

// ReadMark resolves the stored mark for an item. Absence maps to Unset;
// unparseable or sentinel content maps to NoEvent. Malformed content never
// produces an error, only a defined state.
func (s *Session) ReadMark(it Item) Mark {
	data, err := os.ReadFile(s.markPath(it.Identity))
	if err != nil {
		return Mark{State: MarkUnset}
	}
	content := strings.TrimSpace(string(data))
	if content == "" || strings.EqualFold(content, noEventSentinel) {
		return Mark{State: MarkNoEvent}
	}
	frame, err := strconv.Atoi(content)
	if err != nil || frame < 0 {
		return Mark{State: MarkNoEvent}
	}
	return Mark{State: MarkFrame, Frame: frame}
}

// IsUnmarked reports whether an item still needs review for navigation
// purposes. Only a missing mark file, or an empty/garbled one, counts as
// unmarked; the NoEvent sentinel is a completed review and is skipped by the
// next-unmarked scan.
func (s *Session) IsUnmarked(it Item) bool {
	data, err := os.ReadFile(s.markPath(it.Identity))
	if err != nil {
		return true
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return true
	}
	if strings.EqualFold(content, noEventSentinel) {
		return false
	}
	_, err = strconv.Atoi(content)
	return err != nil
}

// Progress counts reviewed items against the manifest. Derived entirely from
// the mark files, so it can be recomputed at any time.
func (s *Session) Progress() (reviewed, total int) {
	for _, it := range s.Items {
		if !s.IsUnmarked(it) {
			reviewed++
		}
	}
	return reviewed, len(s.Items)
}
