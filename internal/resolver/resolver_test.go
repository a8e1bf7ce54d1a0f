package resolver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

// fakeQuerier serves canned player properties.
type fakeQuerier struct {
	props map[string]float64
	text  map[string]string
}

func (f *fakeQuerier) GetPropertyFloat(name string) (float64, error) {
	v, ok := f.props[name]
	if !ok {
		return 0, fmt.Errorf("property unavailable: %s", name)
	}
	return v, nil
}

func (f *fakeQuerier) ExpandText(template string) (string, error) {
	s, ok := f.text[template]
	if !ok {
		return "", fmt.Errorf("template unavailable: %s", template)
	}
	return s, nil
}

func TestCurrentFrameWithOverride(t *testing.T) {
	// fpsOverride=25 and time-pos=2.0 must yield exactly 50, ignoring the
	// native counter entirely.
	q := &fakeQuerier{props: map[string]float64{
		"time-pos":               2.0,
		"estimated-frame-number": 999,
	}}
	r := New(zerolog.Nop(), 25.0, nil)

	frame, err := r.CurrentFrame(q, "a.mp4")
	if err != nil {
		t.Fatalf("CurrentFrame failed: %v", err)
	}
	if frame != 50 {
		t.Errorf("expected 50, got %d", frame)
	}
}

func TestCurrentFrameOverrideRounding(t *testing.T) {
	tests := []struct {
		timePos float64
		fps     float64
		want    int
	}{
		{1.98, 25, 50},  // 49.5 rounds half away from zero
		{1.976, 25, 49}, // 49.4 rounds down
		{0, 25, 0},
		{0.02, 25, 1}, // 0.5 rounds up
	}
	for _, tt := range tests {
		q := &fakeQuerier{props: map[string]float64{"time-pos": tt.timePos}}
		r := New(zerolog.Nop(), tt.fps, nil)
		frame, err := r.CurrentFrame(q, "a.mp4")
		if err != nil {
			t.Fatalf("CurrentFrame(%v) failed: %v", tt.timePos, err)
		}
		if frame != tt.want {
			t.Errorf("time %v * fps %v: expected %d, got %d", tt.timePos, tt.fps, tt.want, frame)
		}
	}
}

func TestCurrentFramePrefersNativeCounter(t *testing.T) {
	q := &fakeQuerier{
		props: map[string]float64{
			"time-pos":               2.0,
			"estimated-frame-number": 61,
		},
		text: map[string]string{"${container-fps}": "30"},
	}
	r := New(zerolog.Nop(), 0, nil)

	frame, err := r.CurrentFrame(q, "a.mp4")
	if err != nil {
		t.Fatalf("CurrentFrame failed: %v", err)
	}
	// Native counter wins over time*fps (which would be 60).
	if frame != 61 {
		t.Errorf("expected native 61, got %d", frame)
	}
}

func TestCurrentFrameTimeFallback(t *testing.T) {
	q := &fakeQuerier{
		props: map[string]float64{"time-pos": 2.0},
		text:  map[string]string{"${container-fps}": "29.97"},
	}
	r := New(zerolog.Nop(), 0, nil)

	frame, err := r.CurrentFrame(q, "a.mp4")
	if err != nil {
		t.Fatalf("CurrentFrame failed: %v", err)
	}
	if frame != 60 { // round(59.94)
		t.Errorf("expected 60, got %d", frame)
	}
}

func TestCurrentFrameUnresolvable(t *testing.T) {
	q := &fakeQuerier{}
	r := New(zerolog.Nop(), 0, nil)

	frame, err := r.CurrentFrame(q, "a.mp4")
	if !errors.Is(err, ErrFrameUnresolvable) {
		t.Fatalf("expected ErrFrameUnresolvable, got %v", err)
	}
	if frame != 0 {
		t.Errorf("unresolvable frame must report 0, got %d", frame)
	}
}

func TestDetectedFPSRejectsNonPositive(t *testing.T) {
	for _, bad := range []string{"0", "-25", "garbage", ""} {
		q := &fakeQuerier{text: map[string]string{"${container-fps}": bad}}
		r := New(zerolog.Nop(), 0, nil)
		if _, err := r.DetectedFPS(q, "a.mp4"); err == nil {
			t.Errorf("fps %q should be unavailable", bad)
		}
	}
}

func TestDetectedFPSProbeFallback(t *testing.T) {
	probeCalls := 0
	probe := func(path string) (float64, error) {
		probeCalls++
		return 24.0, nil
	}
	q := &fakeQuerier{} // player reports nothing
	r := New(zerolog.Nop(), 0, probe)

	for i := 0; i < 3; i++ {
		fps, err := r.DetectedFPS(q, "a.mp4")
		if err != nil {
			t.Fatalf("DetectedFPS failed: %v", err)
		}
		if fps != 24.0 {
			t.Errorf("expected 24, got %v", fps)
		}
	}
	if probeCalls != 1 {
		t.Errorf("probe should be consulted once per item, got %d calls", probeCalls)
	}
}

func TestSeekTarget(t *testing.T) {
	secs, err := SeekTarget(50, 25)
	if err != nil {
		t.Fatalf("SeekTarget failed: %v", err)
	}
	if secs != 2.0 {
		t.Errorf("expected 2.0, got %v", secs)
	}

	if _, err := SeekTarget(50, 0); err == nil {
		t.Error("expected error without fps")
	}
	if _, err := SeekTarget(-1, 25); err == nil {
		t.Error("expected error for negative frame")
	}
}

func TestMarkFPS(t *testing.T) {
	q := &fakeQuerier{text: map[string]string{"${container-fps}": "30"}}

	r := New(zerolog.Nop(), 25, nil)
	if fps, _ := r.MarkFPS(q, "a.mp4"); fps != 25 {
		t.Errorf("override must win, got %v", fps)
	}

	r = New(zerolog.Nop(), 0, nil)
	if fps, _ := r.MarkFPS(q, "a.mp4"); fps != 30 {
		t.Errorf("expected detected 30, got %v", fps)
	}
}
