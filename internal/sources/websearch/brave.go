package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave web search API.
type Brave struct {
	APIKey   string
	Endpoint string
	HTTP     *helpers.HTTPClient
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *Brave) Search(ctx context.Context, q string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("count", strconv.Itoa(k))
	headers := map[string]string{"X-Subscription-Token": b.APIKey}

	var raw braveResponse
	if err := b.HTTP.DoJSON(ctx, "GET", endpoint(b.Endpoint, braveEndpoint)+"?"+params.Encode(), headers, nil, &raw); err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	links := make([]string, 0, len(raw.Web.Results))
	for _, r := range raw.Web.Results {
		links = append(links, r.URL)
	}
	return helpers.UniqueURLs(links, k), nil
}
