package tui

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/behaviorlab/framereview/internal/player"
	"github.com/behaviorlab/framereview/internal/resolver"
	"github.com/behaviorlab/framereview/internal/review"
	"github.com/behaviorlab/framereview/internal/session"
)

type stubPlayer struct{ timePos float64 }

func (s *stubPlayer) Load(string) error             { return nil }
func (s *stubPlayer) Pause(bool) error              { return nil }
func (s *stubPlayer) SeekAbsolute(float64) error    { return nil }
func (s *stubPlayer) ExpandText(string) (string, error) {
	return "", player.ErrPropertyUnavailable
}
func (s *stubPlayer) GetPropertyFloat(name string) (float64, error) {
	if name == "time-pos" {
		return s.timePos, nil
	}
	return 0, player.ErrPropertyUnavailable
}
func (s *stubPlayer) ObserveProperty(string, player.ObserverFunc) error { return nil }
func (s *stubPlayer) BindKey(string, string) error                     { return nil }
func (s *stubPlayer) StepFrame(bool) error                             { return nil }
func (s *stubPlayer) SetSpeed(float64) error                           { return nil }
func (s *stubPlayer) Terminate() error                                 { return nil }

func newTestModel(t *testing.T, showIdentity bool) (Model, *review.Controller) {
	t.Helper()
	input := t.TempDir()
	for _, name := range []string{"mouse01.mp4", "rat02.mp4"} {
		if err := os.WriteFile(filepath.Join(input, name), []byte("fake"), 0644); err != nil {
			t.Fatalf("failed to write video: %v", err)
		}
	}
	sess, err := session.Create(zerolog.Nop(), filepath.Join(t.TempDir(), "scorer1"), input, session.CreateOptions{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	sort.Slice(sess.Items, func(i, j int) bool { return sess.Items[i].Identity < sess.Items[j].Identity })

	factory := func() (player.Player, error) { return &stubPlayer{timePos: 2.0}, nil }
	ctrl := review.New(zerolog.Nop(), sess, resolver.New(zerolog.Nop(), 25, nil), factory)
	if _, err := ctrl.Start(); err != nil {
		t.Fatalf("controller start failed: %v", err)
	}
	return New(zerolog.Nop(), ctrl, showIdentity, nil), ctrl
}

func press(m tea.Model, key tea.KeyMsg) tea.Model {
	next, _ := m.Update(key)
	return next
}

func runes(r rune) tea.KeyMsg {
	return tea.KeyMsg(tea.Key{Type: tea.KeyRunes, Runes: []rune{r}})
}

func TestEnterMarksFrameAndAdvances(t *testing.T) {
	m, ctrl := newTestModel(t, true)

	next := press(m, tea.KeyMsg(tea.Key{Type: tea.KeyEnter}))

	mark := ctrl.Session().ReadMark(ctrl.Session().Items[0])
	if mark.State != session.MarkFrame || mark.Frame != 50 {
		t.Errorf("expected frame 50 mark, got %+v", mark)
	}
	if ctrl.CurrentIndex() != 1 {
		t.Errorf("expected advance to index 1, got %d", ctrl.CurrentIndex())
	}
	if next.(Model).lastErr != "" {
		t.Errorf("unexpected error: %s", next.(Model).lastErr)
	}
}

func TestEscRecordsNoEvent(t *testing.T) {
	m, ctrl := newTestModel(t, true)

	press(m, tea.KeyMsg(tea.Key{Type: tea.KeyEsc}))

	mark := ctrl.Session().ReadMark(ctrl.Session().Items[0])
	if mark.State != session.MarkNoEvent {
		t.Errorf("expected no-event mark, got %+v", mark)
	}
}

func TestGotoPromptJumps(t *testing.T) {
	m, ctrl := newTestModel(t, true)

	var next tea.Model = m
	next = press(next, runes('g'))
	if !next.(Model).gotoActive {
		t.Fatal("g should open the goto prompt")
	}
	next = press(next, runes('2'))
	next = press(next, tea.KeyMsg(tea.Key{Type: tea.KeyEnter}))

	if next.(Model).gotoActive {
		t.Error("prompt should close on enter")
	}
	if ctrl.CurrentIndex() != 1 {
		t.Errorf("expected jump to index 1, got %d", ctrl.CurrentIndex())
	}
}

func TestGotoRejectsOutOfRange(t *testing.T) {
	m, ctrl := newTestModel(t, true)

	var next tea.Model = m
	next = press(next, runes('g'))
	next = press(next, runes('9'))
	next = press(next, tea.KeyMsg(tea.Key{Type: tea.KeyEnter}))

	if next.(Model).lastErr == "" {
		t.Error("out-of-range jump should surface an error")
	}
	if ctrl.CurrentIndex() != 0 {
		t.Errorf("cursor must not move, got %d", ctrl.CurrentIndex())
	}
}

func TestViewHidesIdentityInBlindMode(t *testing.T) {
	m, _ := newTestModel(t, false)
	if strings.Contains(m.View(), "mouse01") {
		t.Error("blind view must not show the video identity")
	}

	shown, ctrl := newTestModel(t, true)
	if !strings.Contains(shown.View(), ctrl.Current().Identity) {
		t.Error("non-blind view should show the video identity")
	}
}

func TestViewReportsCompletion(t *testing.T) {
	m, ctrl := newTestModel(t, true)

	var next tea.Model = m
	next = press(next, tea.KeyMsg(tea.Key{Type: tea.KeyEnter}))
	next = press(next, tea.KeyMsg(tea.Key{Type: tea.KeyEnter}))

	if !ctrl.Completed() {
		t.Fatal("both items marked, session should be complete")
	}
	view := next.(Model).View()
	if !strings.Contains(view, "session complete, results.csv written") {
		t.Errorf("completion status missing from view: %s", view)
	}
}

func TestQuitKeys(t *testing.T) {
	m, _ := newTestModel(t, true)
	for _, key := range []tea.KeyMsg{
		tea.KeyMsg(tea.Key{Type: tea.KeyRunes, Runes: []rune{'q'}}),
		tea.KeyMsg(tea.Key{Type: tea.KeyCtrlC}),
	} {
		_, cmd := m.Update(key)
		if cmd == nil {
			t.Errorf("key %s should quit", key.String())
		}
	}
}
