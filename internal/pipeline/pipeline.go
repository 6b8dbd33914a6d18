// Package pipeline runs the TopicBook stages for one task: plan queries,
// gather sources, outline, illustrate, write and persist.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/mohammad-safakhou/topicbook/internal/task"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ContentSource gathers research. Implementations return empty results
// instead of errors.
type ContentSource interface {
	SearchWeb(ctx context.Context, q string, limit int) []string
	Scrape(ctx context.Context, url string) string
	SearchVideoTranscripts(ctx context.Context, q string, limit int) (string, []string)
	SearchImage(ctx context.Context, q string) (string, bool)
}

// Synthesizer produces text with a language model. Outline and document
// failures are signalled with "".
type Synthesizer interface {
	PlanQueries(ctx context.Context, topic, description string) []string
	GenerateOutline(ctx context.Context, topic, description, corpus string) string
	RefineImageQuery(ctx context.Context, topic, title string) string
	GenerateDocument(ctx context.Context, topic, description, outline, corpus, images string) string
}

// DocumentStore persists the finished document and returns its path.
type DocumentStore interface {
	Persist(topic, content string) (string, error)
}

// Reporter receives status messages. *task.Handle satisfies it.
type Reporter interface {
	Report(message string) error
}

// Options bounds the work done per run. Zero values take the defaults
// (5 web results, 3 transcript videos, headings longer than 5 runes, 4
// image lookups at once). A negative TranscriptResults disables
// transcripts; a negative MinHeadingLength illustrates every heading.
type Options struct {
	WebResults        int
	TranscriptResults int
	MinHeadingLength  int
	Parallel          bool
	ImageConcurrency  int
}

func (o Options) withDefaults() Options {
	if o.WebResults <= 0 {
		o.WebResults = 5
	}
	switch {
	case o.TranscriptResults == 0:
		o.TranscriptResults = 3
	case o.TranscriptResults < 0:
		o.TranscriptResults = 0
	}
	switch {
	case o.MinHeadingLength == 0:
		o.MinHeadingLength = 5
	case o.MinHeadingLength < 0:
		o.MinHeadingLength = 0
	}
	if o.ImageConcurrency <= 0 {
		o.ImageConcurrency = 4
	}
	return o
}

// OptionsFromConfig keeps configured zeros meaningful: transcript_results 0
// turns transcripts off and min_heading_length 0 illustrates every heading.
func OptionsFromConfig(p config.PipelineConfig) Options {
	o := Options{
		WebResults:        p.WebResults,
		TranscriptResults: p.TranscriptResults,
		MinHeadingLength:  p.MinHeadingLength,
		Parallel:          p.Parallel,
		ImageConcurrency:  p.ImageConcurrency,
	}
	if o.TranscriptResults == 0 {
		o.TranscriptResults = -1
	}
	if o.MinHeadingLength == 0 {
		o.MinHeadingLength = -1
	}
	return o
}

// Output describes a successful run.
type Output struct {
	Path    string
	Message string
	Sources int
	Images  int
}

// Engine implements task.Runner.
type Engine struct {
	src    ContentSource
	syn    Synthesizer
	store  DocumentStore
	opts   Options
	logger *logrus.Entry
	tracer trace.Tracer
}

func New(src ContentSource, syn Synthesizer, store DocumentStore, opts Options, logger logrus.FieldLogger) *Engine {
	return &Engine{
		src:    src,
		syn:    syn,
		store:  store,
		opts:   opts.withDefaults(),
		logger: logging.Component(logger, "pipeline"),
		tracer: otel.Tracer("topicbook/pipeline"),
	}
}

// Run executes the pipeline and completes the task through h.
func (e *Engine) Run(ctx context.Context, req task.Request, h *task.Handle) {
	log := e.logger.WithField("task_id", h.ID())
	out, err := e.generate(ctx, req, h, log)
	if err != nil {
		runsTotal.WithLabelValues(string(KindOf(err))).Inc()
		if ferr := h.Fail(KindOf(err), FailureMessage(err)); ferr != nil {
			log.WithError(ferr).Warn("could not record failure")
		}
		return
	}
	runsTotal.WithLabelValues("success").Inc()
	if serr := h.Succeed(out.Message, out.Path); serr != nil {
		log.WithError(serr).Warn("could not record success")
	}
}

// Generate runs every stage for req, reporting progress to rep.
func (e *Engine) Generate(ctx context.Context, req task.Request, rep Reporter) (Output, error) {
	return e.generate(ctx, req, rep, e.logger)
}

func (e *Engine) generate(ctx context.Context, req task.Request, rep Reporter, log *logrus.Entry) (Output, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("topic", req.Topic)))
	defer span.End()

	r := &run{Engine: e, req: req, rep: rep, log: log}
	out, err := r.execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).WithField("kind", KindOf(err)).Error("pipeline failed")
		return Output{}, err
	}
	log.WithFields(logrus.Fields{"path": out.Path, "sources": out.Sources, "images": out.Images}).Info("pipeline finished")
	return out, nil
}

// run carries the state of one execution.
type run struct {
	*Engine
	req task.Request
	rep Reporter
	log *logrus.Entry

	queries []string
	records []Record
	corpus  string
	outline string
	images  []Image
	doc     string
}

func (r *run) execute(ctx context.Context) (Output, error) {
	r.report(fmt.Sprintf("Starting TopicBook generation for: '%s'", r.req.Topic))
	if r.req.Description != "" {
		r.report(fmt.Sprintf("User context: '%s'", r.req.Description))
	}

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"plan", r.plan},
		{"gather", r.gather},
		{"corpus", r.assemble},
		{"outline", r.generateOutline},
		{"images", r.sourceImages},
		{"synthesis", r.synthesize},
	}
	for _, st := range stages {
		if err := r.stage(ctx, st.name, st.fn); err != nil {
			return Output{}, err
		}
	}

	var path string
	err := r.stage(ctx, "persist", func(context.Context) error {
		p, err := r.store.Persist(r.req.Topic, r.doc)
		if err != nil {
			r.report("Could not save the TopicBook. Exiting.")
			return fmt.Errorf("%w: %w", ErrPersistFailed, err)
		}
		path = p
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	msg := "Success! Your TopicBook has been generated: " + path
	r.report(msg)
	return Output{Path: path, Message: msg, Sources: len(r.records), Images: len(r.images)}, nil
}

// stage checks for cancellation, then times and traces fn.
func (r *run) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	ctx, span := r.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	stageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *run) report(msg string) {
	if r.rep == nil {
		return
	}
	if err := r.rep.Report(msg); err != nil {
		r.log.WithError(err).Debug("status report rejected")
	}
}
