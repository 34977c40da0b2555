package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/tmc/ttsstudio"
	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/audioplayer"
	"github.com/tmc/ttsstudio/pcm"
	"github.com/tmc/ttsstudio/visualizer"
	"golang.org/x/term"
)

func newSayCmd() *cobra.Command {
	var out string
	var visualize bool
	var verbose bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "say [text...]",
		Short: "Speak text without the interactive UI",
		Long: `Speak text once and exit when playback finishes.

Text is taken from the arguments, or from stdin when none are given.
With --out the audio is written to a WAV file instead of being played.`,
		Example: `  ttsstudio say --voice Puck "Hello there"
  echo "မင်္ဂလာပါ" | ttsstudio say --visualize
  ttsstudio say --out hello.wav "Hello"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			text, err := readSayText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			requester := newRequester(cfg)
			if c, ok := requester.(io.Closer); ok {
				defer c.Close()
			}
			if out != "" {
				return saveSpeech(ctx, requester, text, cfg.VoiceName(), out, cmd.OutOrStdout())
			}

			controller := newController(cfg)
			defer controller.Close()

			sess, err := ttsstudio.NewSpeaker(requester, controller).GenerateAndPlay(ctx, text, cfg.VoiceName())
			if err != nil {
				return errors.New(ttsstudio.UserMessage(err))
			}

			if visualize && term.IsTerminal(int(os.Stderr.Fd())) {
				stopBars := showBars(sess, cmd.ErrOrStderr(), time.Second/time.Duration(cfg.FPS))
				defer stopBars()
			}

			if err := sess.Wait(ctx); err != nil {
				controller.Stop()
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write a WAV file instead of playing")
	cmd.Flags().BoolVar(&visualize, "visualize", false, "Draw frequency bars on stderr while playing")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long, including playback (0 disables)")

	return cmd
}

// readSayText joins args, falling back to stdin when there are none.
func readSayText(args []string, stdin io.Reader) (string, error) {
	if text := strings.TrimSpace(strings.Join(args, " ")); text != "" {
		return text, nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.New("either pass text as arguments or pipe it on stdin")
	}
	return text, nil
}

// saveSpeech requests speech and writes it to path as WAV.
func saveSpeech(ctx context.Context, r api.SpeechRequester, text string, voice api.VoiceName, path string, stdout io.Writer) error {
	b64, err := r.RequestSpeech(ctx, text, voice)
	if err == nil && b64 == "" {
		err = api.ErrEmptyPayload
	}
	if err != nil {
		return errors.New(ttsstudio.UserMessage(err))
	}
	buf, err := pcm.Decode(b64, pcm.SampleRate, pcm.Channels)
	if err != nil {
		return errors.New(ttsstudio.UserMessage(err))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := buf.WriteWAV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s (%s, voice %s)\n", path, buf.Duration().Round(time.Millisecond), voice)
	return nil
}

// showBars draws a one-row visualizer on w until sess ends. The returned
// func stops drawing and clears the line.
func showBars(sess *audioplayer.Session, w io.Writer, interval time.Duration) func() {
	analyser := sess.Analyser()
	if analyser == nil {
		return func() {}
	}
	canvas := visualizer.NewCanvas(48, 1)
	var mu sync.Mutex
	loop := visualizer.NewLoop(canvas, visualizer.NewTimerScheduler(interval), visualizer.WithFrameHook(func() {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "\r%s", canvas.String())
	}))
	loop.Start(analyser, func() bool {
		return sess.State() == audioplayer.SessionPlaying
	})
	return func() {
		loop.Stop()
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprint(w, "\r\x1b[K")
	}
}
