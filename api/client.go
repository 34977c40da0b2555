package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

// Client requests speech through the GenerateContent RPC of the v1beta
// GenerativeService.
type Client struct {
	APIKey   string // resolved from the environment when empty
	Model    string // defaults to DefaultModel
	Endpoint string // host:port of the service; the library default when empty
	Timeout  time.Duration

	// Options are appended after the key and endpoint options,
	// e.g. option.WithGRPCConn to talk to an in-process server.
	Options []option.ClientOption

	mu    sync.Mutex
	genAI *generativelanguage.GenerativeClient
}

// NewClient creates a client for model. An empty apiKey is resolved from the environment.
func NewClient(apiKey, model string) *Client {
	return &Client{APIKey: ResolveAPIKey(apiKey), Model: model}
}

func (c *Client) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.APIKey != "" {
		opts = append(opts, option.WithAPIKey(c.APIKey))
	}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	return append(opts, c.Options...)
}

// generativeClient creates the underlying client on first use.
func (c *Client) generativeClient(ctx context.Context) (*generativelanguage.GenerativeClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.genAI != nil {
		return c.genAI, nil
	}
	client, err := generativelanguage.NewGenerativeClient(context.WithoutCancel(ctx), c.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create generative client: %w", err)
	}
	log.Println("GenerativeClient initialized successfully.")
	c.genAI = client
	return client, nil
}

// Close closes the underlying client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.genAI == nil {
		return nil
	}
	log.Println("Closing GenerativeClient connection.")
	err := c.genAI.Close()
	c.genAI = nil
	return err
}

func (c *Client) model() string {
	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	return "models/" + strings.TrimPrefix(model, "models/")
}

func textPart(text string) *generativelanguagepb.Part {
	return &generativelanguagepb.Part{Data: &generativelanguagepb.Part_Text{Text: text}}
}

// newSpeechRequest asks model to read text aloud with voice, audio only.
func newSpeechRequest(model, text string, voice VoiceName) *generativelanguagepb.GenerateContentRequest {
	if voice == "" {
		voice = DefaultVoice
	}
	return &generativelanguagepb.GenerateContentRequest{
		Model:             model,
		SystemInstruction: &generativelanguagepb.Content{Parts: []*generativelanguagepb.Part{textPart(SystemInstruction)}},
		Contents: []*generativelanguagepb.Content{
			{Role: "user", Parts: []*generativelanguagepb.Part{textPart(text)}},
		},
		GenerationConfig: &generativelanguagepb.GenerationConfig{
			ResponseModalities: []generativelanguagepb.GenerationConfig_Modality{generativelanguagepb.GenerationConfig_AUDIO},
			SpeechConfig: &generativelanguagepb.SpeechConfig{
				VoiceConfig: &generativelanguagepb.VoiceConfig{
					VoiceConfig: &generativelanguagepb.VoiceConfig_PrebuiltVoiceConfig{
						PrebuiltVoiceConfig: &generativelanguagepb.PrebuiltVoiceConfig{VoiceName: proto.String(string(voice))},
					},
				},
			},
		},
	}
}

// RequestSpeech implements SpeechRequester.
func (c *Client) RequestSpeech(ctx context.Context, text string, voice VoiceName) (string, error) {
	if c.APIKey == "" && len(c.Options) == 0 {
		return "", &TransportError{Err: ErrMissingAPIKey}
	}
	client, err := c.generativeClient(ctx)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req := newSpeechRequest(c.model(), text, voice)
	if os.Getenv("DEBUG_TTSSTUDIO") != "" {
		log.Printf("Sending GenerateContent request: %s", prototext.Format(req))
	}
	start := time.Now()
	resp, err := client.GenerateContent(ctx, req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return "", &TransportError{Err: cerr}
		}
		return "", newRPCError(err)
	}
	log.Printf("GenerateContent for voice %s answered in %v", voice, time.Since(start).Round(time.Millisecond))
	return speechPayload(resp)
}

// speechPayload extracts the first part of the first candidate as base64
// PCM. A text part is a refusal.
func speechPayload(resp *generativelanguagepb.GenerateContentResponse) (string, error) {
	candidates := resp.GetCandidates()
	if len(candidates) == 0 || len(candidates[0].GetContent().GetParts()) == 0 {
		if reason := resp.GetPromptFeedback().GetBlockReason(); reason != 0 {
			log.Printf("Prompt blocked: %s", reason)
		}
		return "", nil
	}
	switch data := candidates[0].GetContent().GetParts()[0].GetData().(type) {
	case *generativelanguagepb.Part_Text:
		if data.Text != "" {
			log.Printf("Gemini returned text instead of audio: %q", data.Text)
			return "", &RefusalError{Text: data.Text}
		}
	case *generativelanguagepb.Part_InlineData:
		if raw := data.InlineData.GetData(); len(raw) > 0 {
			return base64.StdEncoding.EncodeToString(raw), nil
		}
	}
	return "", nil
}

// newRPCError keeps the gRPC status code name and message of err.
func newRPCError(err error) *TransportError {
	st, ok := status.FromError(err)
	if !ok {
		return &TransportError{Err: err}
	}
	return &TransportError{Status: st.Code().String(), Message: st.Message(), Err: err}
}
