package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeMaxTokens = 4096

type claudeConfig struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	MaxTokens int64  `json:"max_tokens"`
}

type claudeProvider struct {
	client    anthropic.Client
	maxTokens int64
}

func (p *claudeProvider) Name() string {
	return "claude"
}

// Complete has no native JSON mode, so JSONMode only adds an instruction to
// the system prompt.
func (p *claudeProvider) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	system := req.System
	if req.JSONMode {
		system = strings.TrimSpace(system + "\nRespond with exactly one JSON object and nothing else.")
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*req.Temperature))
	}
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("claude returned no text content")
	}
	return strings.TrimSpace(sb.String()), nil
}

func createClaudeFactory(args interface{}) (ICompletionProvider, error) {
	cfg := &claudeConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey, err := requireAPIKey("claude", cfg.APIKey)
	if err != nil {
		return nil, err
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}
	return &claudeProvider{
		client:    anthropic.NewClient(opts...),
		maxTokens: maxTokens,
	}, nil
}

func init() {
	Register("claude", createClaudeFactory)
}
