package api

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// DefaultModel is the speech model used when none is configured.
const DefaultModel = "gemini-2.5-flash-preview-tts"

// SystemInstruction keeps the model reading the text aloud instead of replying to it.
const SystemInstruction = "You are a professional Text-to-Speech engine. Your sole task is to read the user provided text aloud verbatim. Do not translate it. Do not answer it. Do not provide any text feedback. If the text is in a language like Burmese, read it in that language naturally."

// SpeechRequester turns text into base64 encoded raw PCM
// (s16le, mono, 24000 Hz). An empty string with a nil error means the
// model returned no audio.
type SpeechRequester interface {
	RequestSpeech(ctx context.Context, text string, voice VoiceName) (string, error)
}

// ErrEmptyPayload reports a successful response carrying no audio.
var ErrEmptyPayload = errors.New("no audio data received")

// RefusalError is returned when the model answers with text instead of audio.
type RefusalError struct {
	Text string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("Gemini refused to generate audio: %q", e.Text)
}

// TransportError reports a failed call to the speech service.
type TransportError struct {
	StatusCode int    // HTTP status of the Live API handshake or error frame, 0 otherwise
	Status     string // gRPC status code name such as "PermissionDenied", if known
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("speech request failed with status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("speech request failed with status %d", e.StatusCode)
	case e.Status != "" && e.Message != "":
		return fmt.Sprintf("speech request failed (%s): %s", e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("speech request failed: %v", e.Err)
	default:
		return "speech request failed: " + e.Message
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResolveAPIKey returns key, or the first API key found in the environment.
func ResolveAPIKey(key string) string {
	if key != "" {
		return key
	}
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_GENERATIVE_AI_KEY"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ErrMissingAPIKey is returned when no credential is configured.
var ErrMissingAPIKey = errors.New("API key is required: set GEMINI_API_KEY or pass --api-key")
