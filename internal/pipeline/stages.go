package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func (r *run) plan(ctx context.Context) error {
	r.queries = r.syn.PlanQueries(ctx, r.req.Topic, r.req.Description)
	if len(r.queries) == 0 {
		r.queries = []string{r.req.Topic}
	}
	r.report(fmt.Sprintf("Planned %d search queries", len(r.queries)))
	return nil
}

func (r *run) gather(ctx context.Context) error {
	if r.opts.Parallel && len(r.queries) > 1 {
		if err := r.gatherParallel(ctx); err != nil {
			return err
		}
	} else {
		for _, q := range r.queries {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrCancelled, err)
			}
			r.records = append(r.records, r.gatherQuery(ctx, q)...)
		}
	}
	recordsGathered.Observe(float64(len(r.records)))
	if len(r.records) == 0 {
		r.report("Could not gather any content. Exiting.")
		return ErrNoContentGathered
	}
	return nil
}

// gatherParallel fans out over queries; records keep query order.
func (r *run) gatherParallel(ctx context.Context) error {
	perQuery := make([][]Record, len(r.queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range r.queries {
		g.Go(func() error {
			perQuery[i] = r.gatherQuery(gctx, q)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	for _, recs := range perQuery {
		r.records = append(r.records, recs...)
	}
	return nil
}

// gatherQuery collects the web records for q followed by its pooled
// transcript record.
func (r *run) gatherQuery(ctx context.Context, q string) []Record {
	r.report(fmt.Sprintf("Executing search: \"%s\"", q))
	var out []Record
	for _, u := range r.src.SearchWeb(ctx, q, r.opts.WebResults) {
		if ctx.Err() != nil {
			return out
		}
		r.report("Scraping URL: " + u)
		if text := r.src.Scrape(ctx, u); strings.TrimSpace(text) != "" {
			out = append(out, Record{Origin: u, Content: text})
		}
	}
	if r.opts.TranscriptResults > 0 && ctx.Err() == nil {
		text, urls := r.src.SearchVideoTranscripts(ctx, q, r.opts.TranscriptResults)
		if len(urls) > 0 && strings.TrimSpace(text) != "" {
			r.report(fmt.Sprintf("Fetched %d video transcripts for \"%s\"", len(urls), q))
			out = append(out, Record{Origin: strings.Join(urls, ", "), Content: text})
		}
	}
	r.log.WithFields(logrus.Fields{"query": q, "records": len(out)}).Debug("query gathered")
	return out
}

func (r *run) assemble(context.Context) error {
	r.corpus = BuildCorpus(r.records)
	r.report(fmt.Sprintf("Total research content gathered (%d sources)", len(r.records)))
	return nil
}

func (r *run) generateOutline(ctx context.Context) error {
	r.outline = strings.TrimSpace(r.syn.GenerateOutline(ctx, r.req.Topic, r.req.Description, r.corpus))
	if r.outline == "" {
		r.report("Could not generate a structure. Exiting.")
		return ErrOutlineGenerationFailed
	}
	r.report("Generated personalized structure:\n" + r.outline)
	return nil
}

func (r *run) sourceImages(ctx context.Context) error {
	r.report("Planning and searching for relevant images...")

	type candidate struct {
		heading string
		clean   string
	}
	var candidates []candidate
	seen := make(map[string]bool)
	for _, h := range HeadingLines(r.outline) {
		clean := CleanHeading(h)
		if seen[h] {
			continue
		}
		seen[h] = true
		if eligibleHeading(clean, r.opts.MinHeadingLength) {
			candidates = append(candidates, candidate{heading: h, clean: clean})
		}
	}

	found := make(map[int]string, len(candidates))
	var mu sync.Mutex
	lookup := func(ctx context.Context, i int) {
		c := candidates[i]
		q := r.syn.RefineImageQuery(ctx, r.req.Topic, c.clean)
		r.report(fmt.Sprintf("AI generated image query: '%s'", q))
		if link, ok := r.src.SearchImage(ctx, q); ok {
			mu.Lock()
			found[i] = link
			mu.Unlock()
			r.report("Found image for: " + c.clean)
		}
	}

	if r.opts.Parallel && len(candidates) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.ImageConcurrency)
		for i := range candidates {
			g.Go(func() error {
				if gctx.Err() == nil {
					lookup(gctx, i)
				}
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range candidates {
			if ctx.Err() != nil {
				break
			}
			lookup(ctx, i)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	for i, c := range candidates {
		if link, ok := found[i]; ok {
			r.images = append(r.images, Image{Heading: c.heading, URL: link})
		}
	}
	return nil
}

func (r *run) synthesize(ctx context.Context) error {
	r.report("Writing the final TopicBook...")
	r.doc = strings.TrimSpace(r.syn.GenerateDocument(ctx, r.req.Topic, r.req.Description, r.outline, r.corpus, ImageInstructions(r.images)))
	if r.doc == "" {
		r.report("Could not generate the final content. Exiting.")
		return ErrFinalSynthesisFailed
	}
	return nil
}
