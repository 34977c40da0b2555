package ttsstudio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/audioplayer"
	"github.com/tmc/ttsstudio/internal/helpers"
	"github.com/tmc/ttsstudio/pcm"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("text is empty")

// Speaker ties a speech requester to a playback controller.
type Speaker struct {
	requester  api.SpeechRequester
	controller *audioplayer.Controller
}

func NewSpeaker(requester api.SpeechRequester, controller *audioplayer.Controller) *Speaker {
	return &Speaker{requester: requester, controller: controller}
}

// Controller returns the playback controller driven by the speaker.
func (s *Speaker) Controller() *audioplayer.Controller { return s.controller }

// GenerateAndPlay synthesizes text with voice and starts playing it.
// Any active session is stopped before the request goes out, so at most one
// session is audible once the call returns. On error nothing is left playing.
func (s *Speaker) GenerateAndPlay(ctx context.Context, text string, voice api.VoiceName) (*audioplayer.Session, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	s.controller.Stop()

	log.Printf("[Speaker] Requesting speech: voice=%s, %d chars", voice, len([]rune(text)))
	var payload string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.controller.Initialize(gctx)
	})
	g.Go(func() error {
		var err error
		payload, err = s.requester.RequestSpeech(gctx, text, voice)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Printf("[Speaker] Generation failed: %v", err)
		return nil, err
	}

	if payload == "" {
		log.Printf("[Speaker] Empty audio payload for voice %s", voice)
		return nil, api.ErrEmptyPayload
	}
	if helpers.IsAudioTraceEnabled() {
		log.Printf("[AUDIO_PIPE] Received %d base64 chars", len(payload))
	}

	buf, err := pcm.Decode(payload, pcm.SampleRate, pcm.Channels)
	if err != nil {
		log.Printf("[Speaker] Decode failed: %v", err)
		return nil, fmt.Errorf("decode audio: %w", err)
	}

	sess, err := s.controller.Play(ctx, buf)
	if err != nil {
		log.Printf("[Speaker] Playback failed: %v", err)
		return nil, fmt.Errorf("start playback: %w", err)
	}
	return sess, nil
}

// Kind classifies generate-and-play failures.
type Kind int

const (
	Unknown Kind = iota
	TransportFailure
	RefusalFailure
	EmptyPayloadFailure
	DecodeFailure
	PlaybackSetupFailure
)

func (k Kind) String() string {
	switch k {
	case TransportFailure:
		return "TransportFailure"
	case RefusalFailure:
		return "RefusalFailure"
	case EmptyPayloadFailure:
		return "EmptyPayloadFailure"
	case DecodeFailure:
		return "DecodeFailure"
	case PlaybackSetupFailure:
		return "PlaybackSetupFailure"
	default:
		return "Unknown"
	}
}

// Classify reports which failure kind err belongs to.
func Classify(err error) Kind {
	var (
		refusal   *api.RefusalError
		transport *api.TransportError
		decode    *pcm.DecodeError
		setup     *audioplayer.SetupError
	)
	switch {
	case err == nil:
		return Unknown
	case errors.As(err, &refusal):
		return RefusalFailure
	case errors.Is(err, api.ErrEmptyPayload):
		return EmptyPayloadFailure
	case errors.As(err, &decode):
		return DecodeFailure
	case errors.As(err, &setup):
		return PlaybackSetupFailure
	case errors.As(err, &transport):
		return TransportFailure
	default:
		return Unknown
	}
}

// UserMessage renders err as the single line shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		refusal   *api.RefusalError
		transport *api.TransportError
		setup     *audioplayer.SetupError
	)
	switch Classify(err) {
	case RefusalFailure:
		errors.As(err, &refusal)
		return refusal.Error()
	case EmptyPayloadFailure:
		return "No audio data received. The model may have returned an empty response."
	case DecodeFailure:
		return "Failed to decode the audio returned by the model."
	case PlaybackSetupFailure:
		errors.As(err, &setup)
		return fmt.Sprintf("Audio output unavailable (%s): %v", setup.Op, setup.Err)
	case TransportFailure:
		errors.As(err, &transport)
		return transport.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Failed to generate speech. Please try again."
}
