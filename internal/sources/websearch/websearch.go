// Package websearch finds candidate page URLs for a query.
package websearch

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

// Searcher returns up to k result URLs for q, best first.
type Searcher interface {
	Search(ctx context.Context, q string, k int) ([]string, error)
}

type Provider string

const (
	GoogleProvider Provider = "google"
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported web search provider")
	ErrMissingCredentials  = errors.New("web search credentials not configured")
)

// New builds the searcher selected by cfg.WebProvider.
func New(cfg config.SourcesConfig, httpc *helpers.HTTPClient) (Searcher, error) {
	switch Provider(cfg.WebProvider) {
	case GoogleProvider:
		if cfg.Google.APIKey == "" || cfg.Google.SearchEngineID == "" {
			return nil, fmt.Errorf("google: %w", ErrMissingCredentials)
		}
		return &Google{APIKey: cfg.Google.APIKey, EngineID: cfg.Google.SearchEngineID, Endpoint: cfg.Google.Endpoint, HTTP: httpc}, nil
	case SerperProvider:
		if cfg.SerperAPIKey == "" {
			return nil, fmt.Errorf("serper: %w", ErrMissingCredentials)
		}
		return &Serper{APIKey: cfg.SerperAPIKey, HTTP: httpc}, nil
	case BraveProvider:
		if cfg.BraveAPIKey == "" {
			return nil, fmt.Errorf("brave: %w", ErrMissingCredentials)
		}
		return &Brave{APIKey: cfg.BraveAPIKey, HTTP: httpc}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.WebProvider)
	}
}
