package websearch

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper queries serper.dev.
type Serper struct {
	APIKey   string
	Endpoint string
	HTTP     *helpers.HTTPClient
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, q string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	payload := map[string]any{"q": q, "num": k}
	headers := map[string]string{"X-API-KEY": s.APIKey}

	var raw serperResponse
	if err := s.HTTP.DoJSON(ctx, "POST", endpoint(s.Endpoint, serperEndpoint), headers, payload, &raw); err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	links := make([]string, 0, len(raw.Organic))
	for _, r := range raw.Organic {
		links = append(links, r.Link)
	}
	return helpers.UniqueURLs(links, k), nil
}
