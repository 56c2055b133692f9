package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnavailable = errors.New("ai provider unavailable")

type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	JSONMode    bool
	Temperature *float32
}

// ICompletionProvider talks to one vendor's completion endpoint.
type ICompletionProvider interface {
	Name() string
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// IEmbedProvider returns one vector per input text, in input order.
type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type ICompleter interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.provider.Embed(ctx, e.model, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d inputs", e.provider.Name(), len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

// EmbedOne embeds a single text through a batch embedder.
func EmbedOne(ctx context.Context, e IEmbedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

type CompletionFactory func(args interface{}) (ICompletionProvider, error)

type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var (
	registry      = map[string]CompletionFactory{}
	embedRegistry = map[string]EmbedFactory{}
)

func Register(name string, factory CompletionFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewProvider(name string, args interface{}) (ICompletionProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("completion provider name is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported completion provider %s", ErrUnavailable, name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedding provider name is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported embedding provider %s", ErrUnavailable, name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}

func requireAPIKey(provider, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: %s api_key is required", ErrUnavailable, provider)
	}
	return key, nil
}
