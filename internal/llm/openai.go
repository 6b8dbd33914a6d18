package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

const openaiDefaultBaseURL = "https://api.openai.com/v1"

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiRequest represents a request to the chat completions API
type openaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// openaiResponse represents a response from the chat completions API
type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// openaiClient implements Provider using OpenAI's chat completions API
type openaiClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	http        *helpers.HTTPClient
}

func newOpenAI(cfg config.LLMProvider, httpc *helpers.HTTPClient) *openaiClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = openaiDefaultBaseURL
	}
	return &openaiClient{
		apiKey:      cfg.APIKey,
		baseURL:     base,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		http:        httpc,
	}
}

func (c *openaiClient) Name() string { return string(OpenAI) + ":" + c.model }

// Generate sends prompt as a single user message.
func (c *openaiClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openaiRequest{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp openaiResponse
	if err := c.http.DoJSON(ctx, "POST", c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
