package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

// Readability extracts the main article body.
type Readability struct {
	fetch *fetcher
}

func (r *Readability) Scrape(ctx context.Context, pageURL string) (string, error) {
	body, err := r.fetch.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	text, err := articleText(body, pageURL)
	if err != nil {
		return "", err
	}
	return helpers.Truncate(text, r.fetch.maxChars), nil
}

func articleText(html []byte, pageURL string) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(html), mustParseURL(pageURL))
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return strings.Join(strings.Fields(article.TextContent), " "), nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
