// Package synthesis turns model output into queries, outlines and documents.
// Every operation degrades instead of returning an error: planning falls back
// to the topic, image queries to a templated phrase, and the outline and
// document to the empty string.
package synthesis

import (
	"context"
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/topicbook/internal/helpers"
	"github.com/mohammad-safakhou/topicbook/internal/llm"
	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topicbook_synthesis_fallbacks_total",
	Help: "Synthesis calls that degraded to their fallback value.",
}, []string{"op"})

// Synthesizer prompts a provider and parses the answers.
type Synthesizer struct {
	provider llm.Provider
	logger   *logrus.Entry
}

func New(provider llm.Provider, logger logrus.FieldLogger) *Synthesizer {
	return &Synthesizer{provider: provider, logger: logging.Component(logger, "synthesis")}
}

// PlanQueries asks for 3-5 search queries. It never returns an empty slice.
func (s *Synthesizer) PlanQueries(ctx context.Context, topic, description string) []string {
	out, err := s.provider.Generate(ctx, planPrompt(topic, description))
	if err != nil {
		s.logger.WithError(err).Warn("could not generate search plan; defaulting to topic")
		fallbacks.WithLabelValues("plan").Inc()
		return []string{topic}
	}
	queries := ParseQueries(out, topic)
	s.logger.WithField("queries", queries).Debug("planned queries")
	return queries
}

// GenerateOutline returns the Markdown table of contents or "" on failure.
func (s *Synthesizer) GenerateOutline(ctx context.Context, topic, description, corpus string) string {
	out, err := s.provider.Generate(ctx, outlinePrompt(topic, description, corpus))
	if err != nil {
		s.logger.WithError(err).Warn("outline generation failed")
		fallbacks.WithLabelValues("outline").Inc()
		return ""
	}
	return helpers.UnwrapMarkdown(out)
}

// RefineImageQuery builds an image search query for a cleaned section title.
func (s *Synthesizer) RefineImageQuery(ctx context.Context, topic, title string) string {
	out, err := s.provider.Generate(ctx, imageQueryPrompt(topic, title))
	if err == nil {
		if q := ParseImageQuery(out); q != "" {
			return q
		}
	}
	if err != nil {
		s.logger.WithError(err).WithField("section", title).Warn("could not generate image query; using fallback")
	}
	fallbacks.WithLabelValues("image_query").Inc()
	return FallbackImageQuery(title)
}

// GenerateDocument writes the final Markdown or returns "" on failure.
// images holds the preformatted per-section image instructions.
func (s *Synthesizer) GenerateDocument(ctx context.Context, topic, description, outline, corpus, images string) string {
	out, err := s.provider.Generate(ctx, documentPrompt(topic, description, outline, corpus, images))
	if err != nil {
		s.logger.WithError(err).Warn("final synthesis failed")
		fallbacks.WithLabelValues("document").Inc()
		return ""
	}
	return helpers.UnwrapMarkdown(out)
}

var quoted = regexp.MustCompile(`"(.*?)"`)

// ParseQueries extracts every double-quoted string from model output. When
// none survive trimming the result is [topic].
func ParseQueries(out, topic string) []string {
	var queries []string
	for _, m := range quoted.FindAllStringSubmatch(out, -1) {
		if q := strings.TrimSpace(m[1]); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return []string{topic}
	}
	return queries
}

// ParseImageQuery takes the first non-empty line and drops wrapping quotes.
func ParseImageQuery(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'`")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// FallbackImageQuery is used when the model gives no usable image query.
func FallbackImageQuery(title string) string {
	return title + " diagram illustration"
}
