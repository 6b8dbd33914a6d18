// Package youtube finds captioned videos and downloads their transcripts.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/helpers"
	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/sirupsen/logrus"
)

const (
	searchEndpoint     = "https://www.googleapis.com/youtube/v3/search"
	transcriptEndpoint = "https://www.youtubevideotranscripts.com/api/transcript"
	watchURL           = "https://www.youtube.com/watch?v="
)

var ErrMissingAPIKey = errors.New("youtube api key not configured")

// Client wraps the YouTube Data API search and a transcript service.
type Client struct {
	apiKey        string
	endpoint      string
	transcripts   string
	language      string
	courtesyDelay time.Duration
	http          *helpers.HTTPClient
	logger        *logrus.Entry
}

func New(cfg config.YouTubeConfig, httpc *helpers.HTTPClient, logger logrus.FieldLogger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:        cfg.APIKey,
		endpoint:      cfg.Endpoint,
		transcripts:   cfg.TranscriptEndpoint,
		courtesyDelay: cfg.CourtesyDelay,
		http:          httpc,
		logger:        logging.Component(logger, "sources").WithField("source", "youtube"),
	}
	if c.endpoint == "" {
		c.endpoint = searchEndpoint
	}
	if c.transcripts == "" {
		c.transcripts = transcriptEndpoint
	}
	if len(cfg.Languages) > 0 {
		// relevanceLanguage takes a bare ISO 639-1 code
		c.language = strings.SplitN(cfg.Languages[0], "-", 2)[0]
	}
	return c, nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

// Search returns up to k IDs of videos that have closed captions.
func (c *Client) Search(ctx context.Context, q string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("videoCaption", "closedCaption")
	params.Set("maxResults", strconv.Itoa(k))
	if c.language != "" {
		params.Set("relevanceLanguage", c.language)
	}

	var raw searchResponse
	if err := c.http.DoJSON(ctx, "GET", c.endpoint+"?"+params.Encode(), helpers.GoogleKeyHeader(c.apiKey), nil, &raw); err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	ids := make([]string, 0, len(raw.Items))
	for _, it := range raw.Items {
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids, nil
}

type transcriptResponse struct {
	Transcript []struct {
		Text string `json:"text"`
	} `json:"transcript"`
}

// Transcript returns the cues of one video joined by spaces.
func (c *Client) Transcript(ctx context.Context, videoID string) (string, error) {
	params := url.Values{}
	params.Set("videoId", videoID)

	var raw transcriptResponse
	if err := c.http.DoJSON(ctx, "GET", c.transcripts+"?"+params.Encode(), nil, nil, &raw); err != nil {
		return "", fmt.Errorf("transcript %s: %w", videoID, err)
	}
	parts := make([]string, 0, len(raw.Transcript))
	for _, cue := range raw.Transcript {
		if t := helpers.PlainText(cue.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// Transcripts searches q and concatenates the transcripts of up to k videos.
// Videos whose transcript cannot be fetched are skipped. The returned URLs are
// the watch pages of the videos that contributed text.
func (c *Client) Transcripts(ctx context.Context, q string, k int) (string, []string, error) {
	ids, err := c.Search(ctx, q, k)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	var urls []string
	for i, id := range ids {
		if i > 0 && c.courtesyDelay > 0 {
			select {
			case <-time.After(c.courtesyDelay):
			case <-ctx.Done():
				return sb.String(), urls, ctx.Err()
			}
		}
		text, err := c.Transcript(ctx, id)
		if err != nil {
			c.logger.WithError(err).WithField("video_id", id).Warn("could not fetch transcript")
			continue
		}
		if text == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
		urls = append(urls, watchURL+id)
	}
	return sb.String(), urls, nil
}
