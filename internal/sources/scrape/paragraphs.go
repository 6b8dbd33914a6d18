package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

// Paragraphs joins the text of every <p> element with single spaces.
type Paragraphs struct {
	fetch *fetcher
}

func (p *Paragraphs) Scrape(ctx context.Context, url string) (string, error) {
	body, err := p.fetch.get(ctx, url)
	if err != nil {
		return "", err
	}
	text, err := ParagraphText(body)
	if err != nil {
		return "", err
	}
	return helpers.Truncate(text, p.fetch.maxChars), nil
}

// ParagraphText extracts and joins paragraph text from an HTML document.
func ParagraphText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " "), nil
}
