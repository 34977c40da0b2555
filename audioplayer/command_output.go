package audioplayer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/tmc/ttsstudio/internal/helpers"
	"github.com/tmc/ttsstudio/pcm"
)

// CommandOutput plays buffers through an external player process. Each
// source runs one process; raw PCM is piped to its stdin, except for afplay,
// which is handed a temporary WAV file.
type CommandOutput struct {
	command string
	cmdName string
	cmdArgs []string
	config  Config

	mu      sync.Mutex
	state   OutputState
	sources map[*commandSource]struct{}
}

// NewCommandOutput creates a suspended output for command. The command is
// looked up on Resume, not here.
func NewCommandOutput(command string, config Config) (*CommandOutput, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("audio player command cannot be empty")
	}
	return &CommandOutput{
		command: command,
		cmdName: parts[0],
		cmdArgs: parts[1:],
		config:  config,
		state:   OutputSuspended,
		sources: make(map[*commandSource]struct{}),
	}, nil
}

// CommandOutputFactory returns an OutputFactory creating CommandOutputs for
// command. An empty command is auto-detected.
func CommandOutputFactory(command string) OutputFactory {
	return func(sampleRate int) (Output, error) {
		if command == "" {
			command = DetectPlayerCommand()
		}
		if command == "" {
			return nil, errors.New("no audio player found; install ffplay, aplay or paplay")
		}
		cfg := DefaultConfig
		cfg.SampleRate = sampleRate
		return NewCommandOutput(command, cfg)
	}
}

// Command returns the player command line.
func (o *CommandOutput) Command() string { return o.command }

// State implements Output.
func (o *CommandOutput) State() OutputState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Resume verifies the player binary exists and marks the output running.
func (o *CommandOutput) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case OutputRunning:
		return nil
	case OutputClosed:
		return ErrNotRunning
	}
	if _, err := exec.LookPath(o.cmdName); err != nil {
		return fmt.Errorf("audio player command '%s' not found in PATH: %w", o.cmdName, err)
	}
	o.state = OutputRunning
	log.Printf("[CommandOutput] Running with command: %q", o.command)
	return nil
}

// NewSource implements Output.
func (o *CommandOutput) NewSource(buf *pcm.Buffer) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != OutputRunning {
		return nil, ErrNotRunning
	}
	s := &commandSource{out: o, buf: buf, done: make(chan struct{})}
	o.sources[s] = struct{}{}
	return s, nil
}

// Close halts every attached source and closes the output.
func (o *CommandOutput) Close() error {
	o.mu.Lock()
	if o.state == OutputClosed {
		o.mu.Unlock()
		return nil
	}
	o.state = OutputClosed
	sources := make([]*commandSource, 0, len(o.sources))
	for s := range o.sources {
		sources = append(sources, s)
	}
	o.sources = make(map[*commandSource]struct{})
	o.mu.Unlock()

	for _, s := range sources {
		if err := s.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
			log.Printf("[CommandOutput WARNING] Stopping source on close: %v", err)
		}
	}
	return nil
}

// usesWAVFile reports whether the player needs a file rather than stdin.
func (o *CommandOutput) usesWAVFile() bool {
	return filepath.Base(o.cmdName) == "afplay"
}

func (o *CommandOutput) detach(s *commandSource) {
	o.mu.Lock()
	delete(o.sources, s)
	o.mu.Unlock()
}

type commandSource struct {
	out  *CommandOutput
	buf  *pcm.Buffer
	done chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	started time.Time
	stopAt  time.Duration
	running bool
	stopped bool
	ended   bool
}

// Start launches the player process.
func (s *commandSource) Start(onEnded func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.stopped || s.ended {
		return errors.New("source already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	args := append([]string(nil), s.out.cmdArgs...)
	var tempFile string
	if s.out.usesWAVFile() {
		path, err := writeTempWAV(s.buf)
		if err != nil {
			cancel()
			return err
		}
		tempFile = path
		args = append(args, path)
	}

	cmd := exec.CommandContext(ctx, s.out.cmdName, args...)
	if tempFile == "" {
		cmd.Stdin = bytes.NewReader(s.buf.PCM16())
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		removeTemp(tempFile)
		return fmt.Errorf("audio player command failed to start: %w", err)
	}
	s.cancel = cancel
	s.started = time.Now()
	s.running = true
	if helpers.IsAudioTraceEnabled() {
		log.Printf("[CommandOutput] Executing %q with %d frames (file: %t)", s.out.command, s.buf.Length(), tempFile != "")
	}

	go s.wait(cmd, &stderr, tempFile, onEnded)
	return nil
}

func (s *commandSource) wait(cmd *exec.Cmd, stderr *bytes.Buffer, tempFile string, onEnded func()) {
	err := cmd.Wait()
	removeTemp(tempFile)

	s.mu.Lock()
	stopped := s.stopped
	s.ended = true
	s.running = false
	elapsed := time.Since(s.started)
	s.cancel()
	s.mu.Unlock()
	close(s.done)

	if stopped {
		if helpers.IsAudioTraceEnabled() {
			log.Printf("[CommandOutput] Playback cancelled after %v", elapsed)
		}
		return
	}
	if err != nil {
		log.Printf("[CommandOutput ERROR] %q exited: %v (stderr: %s)", s.out.command, err, stderr.String())
	} else if helpers.IsAudioTraceEnabled() {
		log.Printf("[CommandOutput] Playback completed OK after %v", elapsed)
	}
	if onEnded != nil {
		onEnded()
	}
}

// stopWaitTimeout bounds how long Stop waits for a cancelled player to exit.
const stopWaitTimeout = 2 * time.Second

// Stop cancels the player process and waits up to stopWaitTimeout for it
// to exit.
func (s *commandSource) Stop() error {
	s.mu.Lock()
	if s.stopped || s.ended {
		s.mu.Unlock()
		return ErrAlreadyStopped
	}
	s.stopped = true
	running := s.running
	if running {
		s.stopAt = s.positionLocked()
		s.cancel()
	}
	s.mu.Unlock()

	if !running {
		return nil
	}
	select {
	case <-s.done:
	case <-time.After(stopWaitTimeout):
		log.Printf("[CommandOutput WARNING] %q still running %v after stop", s.out.command, stopWaitTimeout)
	}
	return nil
}

// Position is the wall clock time since start, clamped to the buffer duration.
func (s *commandSource) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return s.stopAt
	}
	return s.positionLocked()
}

func (s *commandSource) positionLocked() time.Duration {
	if s.started.IsZero() {
		return 0
	}
	d := s.buf.Duration()
	if s.ended {
		return d
	}
	if p := time.Since(s.started); p < d {
		return p
	}
	return d
}

func (s *commandSource) Disconnect() {
	s.out.detach(s)
}

// writeTempWAV writes buf to a temporary WAV file and returns its path.
func writeTempWAV(buf *pcm.Buffer) (string, error) {
	f, err := os.CreateTemp("", "ttsstudio-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	errData := buf.WriteWAV(f)
	errClose := f.Close()
	if err := errors.Join(errData, errClose); err != nil {
		removeTemp(f.Name())
		return "", fmt.Errorf("failed writing temp file %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

func removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		log.Printf("[CommandOutput WARNING] Failed to remove temp file %s: %v", path, err)
	}
}

// DetectPlayerCommand looks for a player able to take raw PCM at the wire
// format. It returns "" when none is found.
func DetectPlayerCommand() string {
	rate := pcm.SampleRate
	if path, err := exec.LookPath("ffplay"); err == nil {
		cmd := fmt.Sprintf("%s -autoexit -nodisp -loglevel error -f %s -ar %d -ac 1 -i -", path, pcm.Format, rate)
		log.Printf("Auto-detected audio player: %s (using ffplay)", cmd)
		return cmd
	}
	if runtime.GOOS == "linux" {
		if path, err := exec.LookPath("aplay"); err == nil {
			cmd := fmt.Sprintf("%s -q -c 1 -r %d -f S16_LE -", path, rate)
			log.Printf("Auto-detected audio player: %s (using aplay)", cmd)
			return cmd
		}
		if path, err := exec.LookPath("paplay"); err == nil {
			cmd := fmt.Sprintf("%s --raw --channels=1 --rate=%d --format=%s", path, rate, pcm.Format)
			log.Printf("Auto-detected audio player: %s (using paplay)", cmd)
			return cmd
		}
	}
	if runtime.GOOS == "darwin" {
		if _, err := exec.LookPath("afplay"); err == nil {
			log.Println("Detected 'afplay'. Will use temp files for playback.")
			return "afplay"
		}
		log.Println("Info: 'ffplay' not found. For best audio on macOS, install FFmpeg (`brew install ffmpeg`).")
	}
	log.Println("Warning: Could not auto-detect a suitable audio player. Please install ffplay, aplay, paplay, or pass --player.")
	return ""
}
