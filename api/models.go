package api

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/prototext"
)

// DefaultModelFilter keeps speech models when listing.
const DefaultModelFilter = "tts"

// ModelInfo contains information about a model
type ModelInfo struct {
	Name             string // Full model name including prefix
	DisplayName      string
	Description      string
	InputTokenLimit  int32
	OutputTokenLimit int32
	Methods          []string // supported generation methods
}

// ID returns the model name without the "models/" prefix.
func (m ModelInfo) ID() string { return strings.TrimPrefix(m.Name, "models/") }

// ModelLister lists models through the v1beta ModelService over gRPC.
type ModelLister struct {
	apiKey string
	conn   *grpc.ClientConn
	opts   []option.ClientOption
}

// ListerOption configures a ModelLister.
type ListerOption func(*ModelLister)

// WithGRPCConn makes the lister use conn instead of dialing the service.
func WithGRPCConn(conn *grpc.ClientConn) ListerOption {
	return func(l *ModelLister) { l.conn = conn }
}

// WithClientOptions appends raw client options.
func WithClientOptions(opts ...option.ClientOption) ListerOption {
	return func(l *ModelLister) { l.opts = append(l.opts, opts...) }
}

// NewModelLister creates a lister. An empty apiKey is resolved from the environment.
func NewModelLister(apiKey string, opts ...ListerOption) *ModelLister {
	l := &ModelLister{apiKey: ResolveAPIKey(apiKey)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ModelLister) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if l.conn != nil {
		opts = append(opts, option.WithGRPCConn(l.conn))
	} else if l.apiKey != "" {
		log.Println("Using provided API Key.")
		opts = append(opts, option.WithAPIKey(l.apiKey))
	} else {
		log.Println("API Key not provided, attempting Application Default Credentials (ADC).")
	}
	return append(opts, l.opts...)
}

// ListTTSModels returns the models whose name contains filter, ignoring
// case. An empty filter uses DefaultModelFilter; "*" keeps every model.
func (l *ModelLister) ListTTSModels(ctx context.Context, filter string) ([]ModelInfo, error) {
	if filter == "" {
		filter = DefaultModelFilter
	}
	filter = strings.ToLower(filter)

	modelClient, err := generativelanguage.NewModelClient(ctx, l.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create v1beta model client: %w", err)
	}
	// The connection passed in with WithGRPCConn is owned by the caller.
	if l.conn == nil {
		defer modelClient.Close()
	}

	debug := os.Getenv("DEBUG_TTSSTUDIO") != ""
	it := modelClient.ListModels(ctx, &generativelanguagepb.ListModelsRequest{})
	var models []ModelInfo
	for {
		model, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating v1beta models: %w", err)
		}
		if debug {
			log.Printf("Received model: %s", prototext.Format(model))
		}
		if filter != "*" && !strings.Contains(strings.ToLower(model.GetName()), filter) {
			continue
		}
		models = append(models, ModelInfo{
			Name:             model.GetName(),
			DisplayName:      model.GetDisplayName(),
			Description:      model.GetDescription(),
			InputTokenLimit:  model.GetInputTokenLimit(),
			OutputTokenLimit: model.GetOutputTokenLimit(),
			Methods:          model.GetSupportedGenerationMethods(),
		})
	}
	log.Printf("Listed %d models matching %q", len(models), filter)
	return models, nil
}
