package player

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the mpv subprocess.
type Options struct {
	BinaryPath     string
	ExtraOptions   []string // key=value, appended as --key=value
	StartupTimeout time.Duration
}

var socketSeq atomic.Int64

// Mpv runs one mpv process with an IPC control socket. One instance reviews
// one video; the navigation controller tears it down and creates a fresh one
// per item so decoder state never leaks across loads.
type Mpv struct {
	logger zerolog.Logger
	cmd    *exec.Cmd
	ipc    *ipcConn
	socket string

	loadTimeout time.Duration
	terminated  atomic.Bool
}

// New starts mpv idle and paused and connects to its IPC socket. The playback
// options mirror what frame-accurate review needs: high-resolution seeking
// without frame dropping and a large backward demuxer buffer so single-frame
// backward steps stay cheap.
func New(logger zerolog.Logger, opts Options) (*Mpv, error) {
	binary := opts.BinaryPath
	if binary == "" {
		binary = "mpv"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("mpv not found in PATH: %w", err)
	}

	timeout := opts.StartupTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	socket := filepath.Join(os.TempDir(),
		fmt.Sprintf("framereview-mpv-%d-%d.sock", os.Getpid(), socketSeq.Add(1)))

	args := []string{
		"--input-ipc-server=" + socket,
		"--idle=yes",
		"--pause",
		"--keep-open=yes",
		"--force-window=yes",
		"--hr-seek=yes",
		"--hr-seek-framedrop=no",
		"--video-sync=display-resample",
		"--demuxer-max-bytes=2GiB",
		"--demuxer-max-back-bytes=2GiB",
		"--cache=yes",
		"--osd-level=3",
		"--osd-status-msg=${playback-time/full} / ${duration} (${percent-pos}%)\nframe: ${estimated-frame-number} / ${estimated-frame-count}",
	}
	for _, extra := range opts.ExtraOptions {
		args = append(args, "--"+extra)
	}

	log := logger.With().Str("component", "player").Logger()
	log.Debug().Str("binary", path).Str("socket", socket).Msg("starting mpv")

	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}

	conn, err := dialSocket(socket, timeout)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.Remove(socket)
		return nil, fmt.Errorf("mpv IPC socket did not come up: %w", err)
	}

	return &Mpv{
		logger:      log,
		cmd:         cmd,
		ipc:         newIPCConn(log, conn, timeout),
		socket:      socket,
		loadTimeout: timeout,
	}, nil
}

func dialSocket(socket string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Load opens a video and blocks until the file is demuxed, polling the
// duration property. A file mpv cannot open never reports a duration, so the
// poll deadline surfaces as ErrLoadFailure.
func (m *Mpv) Load(path string) error {
	if _, err := m.ipc.command("loadfile", path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLoadFailure, path, err)
	}

	deadline := time.Now().Add(m.loadTimeout)
	for {
		if _, err := m.GetPropertyFloat("duration"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s: no duration after %s", ErrLoadFailure, path, m.loadTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Review always starts paused; the reviewer drives playback.
	if err := m.Pause(true); err != nil {
		return err
	}
	m.logger.Debug().Str("path", path).Msg("video loaded")
	return nil
}

func (m *Mpv) Pause(paused bool) error {
	_, err := m.ipc.command("set_property", "pause", paused)
	return err
}

func (m *Mpv) SeekAbsolute(seconds float64) error {
	_, err := m.ipc.command("seek", seconds, "absolute+exact")
	return err
}

func (m *Mpv) GetPropertyFloat(name string) (float64, error) {
	data, err := m.ipc.command("get_property", name)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("%w: %s is not numeric", ErrPropertyUnavailable, name)
	}
	return v, nil
}

func (m *Mpv) ExpandText(template string) (string, error) {
	data, err := m.ipc.command("expand-text", template)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("unexpected expand-text payload: %w", err)
	}
	return s, nil
}

func (m *Mpv) ObserveProperty(name string, fn ObserverFunc) error {
	id := m.ipc.observe(fn)
	_, err := m.ipc.command("observe_property", id, name)
	return err
}

func (m *Mpv) BindKey(combo, action string) error {
	_, err := m.ipc.command("keybind", combo, action)
	return err
}

func (m *Mpv) StepFrame(forward bool) error {
	cmd := "frame-step"
	if !forward {
		cmd = "frame-back-step"
	}
	_, err := m.ipc.command(cmd)
	return err
}

func (m *Mpv) SetSpeed(factor float64) error {
	_, err := m.ipc.command("set_property", "speed", factor)
	return err
}

// Terminate asks mpv to quit, then makes sure the process is reaped and the
// socket removed. Idempotent.
func (m *Mpv) Terminate() error {
	if !m.terminated.CompareAndSwap(false, true) {
		return nil
	}

	m.ipc.command("quit") // best effort
	m.ipc.close()

	done := make(chan error, 1)
	go func() { done <- m.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		m.logger.Warn().Msg("mpv did not exit, killing")
		m.cmd.Process.Kill()
		<-done
	}

	os.Remove(m.socket)
	m.logger.Debug().Msg("mpv terminated")
	return nil
}
