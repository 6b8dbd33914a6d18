package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

const googleDefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

// googleMaxNum is the Custom Search API cap on results per request.
const googleMaxNum = 10

// Google queries the Custom Search JSON API.
type Google struct {
	APIKey   string
	EngineID string
	Endpoint string
	HTTP     *helpers.HTTPClient
}

type googleResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"items"`
}

func (g *Google) Search(ctx context.Context, q string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	num := k
	if num > googleMaxNum {
		num = googleMaxNum
	}
	params := url.Values{}
	params.Set("cx", g.EngineID)
	params.Set("q", q)
	params.Set("num", strconv.Itoa(num))

	var raw googleResponse
	if err := g.HTTP.DoJSON(ctx, "GET", endpoint(g.Endpoint, googleDefaultEndpoint)+"?"+params.Encode(), helpers.GoogleKeyHeader(g.APIKey), nil, &raw); err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}
	links := make([]string, 0, len(raw.Items))
	for _, it := range raw.Items {
		links = append(links, it.Link)
	}
	return helpers.UniqueURLs(links, k), nil
}

func endpoint(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
