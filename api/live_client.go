package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// LiveModelEndpoint is the WebSocket endpoint for Gemini Live API
	LiveModelEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"

	// DefaultLiveModel is a Live API model able to answer with audio.
	DefaultLiveModel = "gemini-2.0-flash-live-001"
)

// LiveClient requests speech over a short-lived Live API session: one
// setup, one text turn, and the audio chunks of the reply.
type LiveClient struct {
	APIKey           string
	Model            string // defaults to DefaultLiveModel
	Endpoint         string // defaults to LiveModelEndpoint
	HandshakeTimeout time.Duration
}

// NewLiveClient creates a Live API speech client. An empty apiKey is
// resolved from the environment.
func NewLiveClient(apiKey, model string) *LiveClient {
	return &LiveClient{APIKey: ResolveAPIKey(apiKey), Model: model}
}

// LiveSetupRequest represents the initial setup message for the Live API
type LiveSetupRequest struct {
	Setup LiveSetupConfig `json:"setup"`
}

// LiveSetupConfig contains configuration for the Live API session
type LiveSetupConfig struct {
	Model             string               `json:"model"`
	GenerationConfig  LiveGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *LiveContent         `json:"systemInstruction,omitempty"`
}

// LiveGenerationConfig contains generation parameters for the Live API
type LiveGenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

// LiveContent represents content in a message
type LiveContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []LivePart `json:"parts"`
}

// LivePart represents a part of a message
type LivePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

// LiveClientMessageRequest represents a client message to the Live API
type LiveClientMessageRequest struct {
	ClientContent *LiveClientContent `json:"clientContent,omitempty"`
}

// LiveClientContent contains the content of a client message
type LiveClientContent struct {
	Turns        []LiveContent `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

// LiveServerResponse represents a response from the Live API
type LiveServerResponse struct {
	ServerContent *LiveServerContent `json:"serverContent,omitempty"`
	SetupComplete *struct{}          `json:"setupComplete,omitempty"`
	Error         *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// LiveServerContent contains the content of a server response
type LiveServerContent struct {
	ModelTurn    *LiveContent `json:"modelTurn,omitempty"`
	TurnComplete bool         `json:"turnComplete"`
	Interrupted  bool         `json:"interrupted"`
}

// RequestSpeech implements SpeechRequester.
func (c *LiveClient) RequestSpeech(ctx context.Context, text string, voice VoiceName) (string, error) {
	if c.APIKey == "" {
		return "", &TransportError{Err: ErrMissingAPIKey}
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = LiveModelEndpoint
	}
	timeout := c.HandshakeTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	header := http.Header{}
	header.Add("x-goog-api-key", c.APIKey)
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	log.Printf("Connecting to Live API endpoint: %s", endpoint)
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return "", &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to connect to Live API: %w", err)}
		}
		return "", &TransportError{Err: fmt.Errorf("failed to connect to Live API: %w", err)}
	}
	defer conn.Close()

	// Unblock reads when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	audio, refusal, err := c.converse(conn, text, voice)
	if err != nil {
		if ctx.Err() != nil {
			return "", &TransportError{Err: ctx.Err()}
		}
		return "", err
	}
	if len(audio) == 0 && refusal != "" {
		log.Printf("Gemini returned text instead of audio: %q", refusal)
		return "", &RefusalError{Text: refusal}
	}
	if len(audio) == 0 {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}

func (c *LiveClient) converse(conn *websocket.Conn, text string, voice VoiceName) ([]byte, string, error) {
	model := c.Model
	if model == "" {
		model = DefaultLiveModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	setup := LiveSetupRequest{Setup: LiveSetupConfig{
		Model: model,
		GenerationConfig: LiveGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       newSpeechConfig(voice),
		},
		SystemInstruction: &LiveContent{Parts: []LivePart{{Text: SystemInstruction}}},
	}}
	if err := c.send(conn, setup); err != nil {
		return nil, "", &TransportError{Err: fmt.Errorf("failed to send setup message: %w", err)}
	}

	msg, err := c.receive(conn)
	if err != nil {
		return nil, "", err
	}
	if msg.SetupComplete == nil {
		return nil, "", &TransportError{Message: "expected setupComplete from Live API"}
	}

	turn := LiveClientMessageRequest{ClientContent: &LiveClientContent{
		Turns:        []LiveContent{{Role: "user", Parts: []LivePart{{Text: text}}}},
		TurnComplete: true,
	}}
	if err := c.send(conn, turn); err != nil {
		return nil, "", &TransportError{Err: fmt.Errorf("failed to send text turn: %w", err)}
	}

	var audio bytes.Buffer
	var refusal strings.Builder
	for {
		msg, err := c.receive(conn)
		if err != nil {
			return nil, "", err
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.Text != "" {
					refusal.WriteString(p.Text)
				}
				if p.InlineData != nil && p.InlineData.Data != "" {
					chunk, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
					if err != nil {
						return nil, "", &TransportError{Err: fmt.Errorf("invalid audio chunk: %w", err)}
					}
					audio.Write(chunk)
				}
			}
		}
		if sc.TurnComplete || sc.Interrupted {
			return audio.Bytes(), refusal.String(), nil
		}
	}
}

func (c *LiveClient) send(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if os.Getenv("DEBUG_TTSSTUDIO") != "" {
		log.Printf("Sending Live API message: %s", data)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *LiveClient) receive(conn *websocket.Conn) (*LiveServerResponse, error) {
	_, message, err := conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, &TransportError{StatusCode: 0, Message: closeErr.Text, Err: err}
		}
		return nil, &TransportError{Err: err}
	}
	var resp LiveServerResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to decode Live API message: %w", err)}
	}
	if resp.Error != nil {
		return nil, &TransportError{StatusCode: resp.Error.Code, Message: resp.Error.Message}
	}
	return &resp, nil
}
