// Package sources gathers research material. Every Collector method degrades
// to an empty result: failures are logged and counted, never returned.
package sources

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/helpers"
	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/mohammad-safakhou/topicbook/internal/sources/images"
	"github.com/mohammad-safakhou/topicbook/internal/sources/scrape"
	"github.com/mohammad-safakhou/topicbook/internal/sources/websearch"
	"github.com/mohammad-safakhou/topicbook/internal/sources/youtube"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var sourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topicbook_source_errors_total",
	Help: "Content source calls that failed and degraded to an empty result.",
}, []string{"source"})

// WebSearcher returns result URLs for a query.
type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]string, error)
}

// TranscriptSearcher returns pooled transcript text and the contributing URLs.
type TranscriptSearcher interface {
	Transcripts(ctx context.Context, q string, k int) (string, []string, error)
}

// ImageFinder returns the top image URL for a query.
type ImageFinder interface {
	Find(ctx context.Context, q string) (string, bool, error)
}

// Collector combines the individual sources. A nil source yields nothing.
type Collector struct {
	Web         WebSearcher
	Scraper     scrape.Scraper
	Transcripts TranscriptSearcher
	Images      ImageFinder
	Logger      *logrus.Entry

	// Policy filters web results before they are scraped. It must be normalized.
	Policy config.SitePolicyConfig
}

// FromConfig builds a Collector. Sources without credentials are left out and
// logged; the task will then run with whatever the others provide.
func FromConfig(cfg config.SourcesConfig, logger logrus.FieldLogger) (*Collector, error) {
	log := logging.Component(logger, "sources")
	httpc := helpers.NewHTTPClient(cfg.HTTP.Timeout, cfg.HTTP.Retries, cfg.HTTP.Backoff)

	scraper, err := scrape.New(cfg.Scrape)
	if err != nil {
		return nil, err
	}
	c := &Collector{Scraper: scraper, Logger: log, Policy: cfg.SitePolicy.Normalize()}

	if web, err := websearch.New(cfg, httpc); err == nil {
		c.Web = web
	} else if errors.Is(err, websearch.ErrMissingCredentials) {
		log.WithError(err).Warn("web search disabled")
	} else {
		return nil, err
	}

	if yt, err := youtube.New(cfg.YouTube, httpc, logger); err == nil {
		c.Transcripts = yt
	} else {
		log.WithError(err).Warn("video transcripts disabled")
	}

	if img, err := images.New(cfg.Google, httpc); err == nil {
		c.Images = img
	} else {
		log.WithError(err).Warn("image search disabled")
	}
	return c, nil
}

func (c *Collector) log() *logrus.Entry {
	if c.Logger == nil {
		return logging.Component(nil, "sources")
	}
	return c.Logger
}

func (c *Collector) SearchWeb(ctx context.Context, q string, limit int) []string {
	if c.Web == nil {
		return nil
	}
	urls, err := c.Web.Search(ctx, q, limit)
	if err != nil {
		sourceErrors.WithLabelValues("web").Inc()
		c.log().WithError(err).WithField("query", q).Warn("web search failed")
		return nil
	}
	kept := make([]string, 0, len(urls))
	for _, u := range urls {
		if c.Policy.Permits(u) {
			kept = append(kept, u)
		} else {
			c.log().WithField("url", u).Debug("skipped by site policy")
		}
	}
	return kept
}

func (c *Collector) Scrape(ctx context.Context, url string) string {
	if c.Scraper == nil {
		return ""
	}
	text, err := c.Scraper.Scrape(ctx, url)
	if err != nil {
		sourceErrors.WithLabelValues("scrape").Inc()
		c.log().WithError(err).WithField("url", url).Warn("scrape failed")
		return ""
	}
	return text
}

func (c *Collector) SearchVideoTranscripts(ctx context.Context, q string, limit int) (string, []string) {
	if c.Transcripts == nil || limit <= 0 {
		return "", nil
	}
	text, urls, err := c.Transcripts.Transcripts(ctx, q, limit)
	if err != nil {
		sourceErrors.WithLabelValues("transcripts").Inc()
		c.log().WithError(err).WithField("query", q).Warn("transcript search failed")
		if len(urls) == 0 {
			return "", nil
		}
	}
	return text, urls
}

func (c *Collector) SearchImage(ctx context.Context, q string) (string, bool) {
	if c.Images == nil {
		return "", false
	}
	link, ok, err := c.Images.Find(ctx, q)
	if err != nil {
		sourceErrors.WithLabelValues("images").Inc()
		c.log().WithError(err).WithField("query", q).Warn("image search failed")
		return "", false
	}
	return link, ok
}
