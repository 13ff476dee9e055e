package graph

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/curvesy/argus/internal/config"
)

// Capability is the external triple-extraction capability. It is treated
// as a black box returning JSON; the pipeline tolerates any output shape.
type Capability interface {
	Extract(ctx context.Context, text string) ([]byte, error)
}

const extractionPrompt = `Extract factual relationships from the text as JSON:
{"relationships": [{"subject": "...", "predicate": "...", "object": "...", "confidence": 0.0}]}
Use short noun phrases for subject and object and a single verb phrase for predicate.
Confidence is optional. Return JSON only.`

// OpenAIExtractor implements Capability against an OpenAI-compatible
// chat completion endpoint.
type OpenAIExtractor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIExtractor builds an extractor from config.
func NewOpenAIExtractor(cfg config.ExtractionConfig) *OpenAIExtractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIExtractor{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: timeout,
	}
}

// Extract asks the model for relationships and returns its raw JSON reply.
func (e *OpenAIExtractor) Extract(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction returned no choices")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
