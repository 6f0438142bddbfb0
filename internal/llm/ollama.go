package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// message is a single chat message in the Ollama wire format.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaAgent calls the Ollama /api/chat endpoint for generative responses.
type OllamaAgent struct {
	baseURL      string
	model        string
	systemPrompt string
	temperature  float64
	client       *http.Client
}

// NewOllamaAgent creates an agent targeting the given Ollama instance and model.
func NewOllamaAgent(baseURL, model, systemPrompt string, temperature float64) *OllamaAgent {
	return &OllamaAgent{
		baseURL:      baseURL,
		model:        model,
		systemPrompt: systemPrompt,
		temperature:  temperature,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message message `json:"message"`
}

// Run sends the prompt to Ollama and returns the assistant's response.
func (a *OllamaAgent) Run(ctx context.Context, prompt string) (string, error) {
	msgs := []message{}
	if a.systemPrompt != "" {
		msgs = append(msgs, message{Role: "system", Content: a.systemPrompt})
	}
	msgs = append(msgs, message{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:    a.model,
		Messages: msgs,
		Stream:   false,
		Options:  map[string]any{"temperature": a.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ollama chat request: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama chat returned %d: %s", ErrInference, resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode chat response: %v", ErrInference, err)
	}

	return result.Message.Content, nil
}
