// Package llm talks to the text generation backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

// Client represents different LLM providers
type Client string

const (
	Gemini Client = "gemini"
	OpenAI Client = "openai"
)

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("llm returned no text")

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// NewProvider creates an LLM client for the given provider configuration.
func NewProvider(cfg config.LLMProvider) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s api key not set", cfg.Type)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	httpc := helpers.NewHTTPClient(timeout, cfg.MaxRetries, time.Second)

	switch Client(cfg.Type) {
	case Gemini:
		return newGemini(cfg, httpc), nil
	case OpenAI:
		return newOpenAI(cfg, httpc), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Type)
	}
}
