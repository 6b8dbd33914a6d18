// Package images finds an illustration for a query with Google Custom Search.
package images

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

const defaultEndpoint = "https://www.googleapis.com/customsearch/v1"

var ErrMissingCredentials = errors.New("image search credentials not configured")

// Searcher returns the top image result.
type Searcher struct {
	apiKey   string
	engineID string
	endpoint string
	http     *helpers.HTTPClient
}

func New(cfg config.GoogleConfig, httpc *helpers.HTTPClient) (*Searcher, error) {
	if cfg.APIKey == "" || cfg.SearchEngineID == "" {
		return nil, ErrMissingCredentials
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Searcher{apiKey: cfg.APIKey, engineID: cfg.SearchEngineID, endpoint: endpoint, http: httpc}, nil
}

type response struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

// Find reports the URL of the first image result, if any.
func (s *Searcher) Find(ctx context.Context, q string) (string, bool, error) {
	params := url.Values{}
	params.Set("cx", s.engineID)
	params.Set("q", q)
	params.Set("searchType", "image")
	params.Set("num", "1")

	var raw response
	if err := s.http.DoJSON(ctx, "GET", s.endpoint+"?"+params.Encode(), helpers.GoogleKeyHeader(s.apiKey), nil, &raw); err != nil {
		return "", false, fmt.Errorf("image search: %w", err)
	}
	for _, it := range raw.Items {
		if link, ok := helpers.CleanResultURL(it.Link); ok {
			return link, true, nil
		}
	}
	return "", false, nil
}
