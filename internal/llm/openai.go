package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"lore/internal/config"
)

// OpenAIAgent calls the OpenAI chat API (or any OpenAI-compatible server)
// via langchaingo.
type OpenAIAgent struct {
	model        *openai.LLM
	systemPrompt string
	temperature  float64
}

// NewOpenAIAgent creates an agent backed by the OpenAI chat API.
func NewOpenAIAgent(cfg config.LLMConfig, systemPrompt string) (*OpenAIAgent, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	return &OpenAIAgent{
		model:        model,
		systemPrompt: systemPrompt,
		temperature:  cfg.Temperature,
	}, nil
}

// Run sends the prompt and returns the first completion choice.
func (a *OpenAIAgent) Run(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{}
	if a.systemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, a.systemPrompt))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := a.model.GenerateContent(ctx, content, llms.WithTemperature(a.temperature))
	if err != nil {
		return "", fmt.Errorf("%w: openai chat: %v", ErrInference, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai chat returned no choices", ErrInference)
	}
	return resp.Choices[0].Content, nil
}
