package scrape

import (
	"context"
	"errors"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/topicbook/internal/helpers"
)

// Chromedp renders the page in headless Chrome before extracting the article.
type Chromedp struct {
	fetch *fetcher
}

func (c *Chromedp) Scrape(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("invalid url")
	}
	if err := c.fetch.wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.fetch.timeout)
	defer cancel()

	html, err := c.render(ctx, url)
	if err != nil {
		return "", err
	}
	text, err := articleText([]byte(html), url)
	if err != nil {
		return "", err
	}
	return helpers.Truncate(text, c.fetch.maxChars), nil
}

func (c *Chromedp) render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(c.fetch.userAgent()),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
