// Package pipeline drives every search term through every enabled source,
// one pair at a time, and hands each batch to the sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"medresai-scraper/internal/components/assert"
	"medresai-scraper/internal/components/chrono"
	"medresai-scraper/internal/components/telemetry"
	"medresai-scraper/internal/record"
	"medresai-scraper/internal/scrapers"
	"medresai-scraper/internal/scrapers/registry"
	"medresai-scraper/internal/sink"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("protscrape.internal.pipeline")
	meter  = otel.Meter("protscrape.internal.pipeline")
)

const (
	report_pipeline_fetch = "pipeline.fetch"
	report_pipeline_panic = "pipeline.fetch-panic"
	report_pipeline_write = "pipeline.write"
	report_pipeline_skip  = "pipeline.skip"
)

// Source pairs an adapter with the descriptor it was built from.
type Source struct {
	Descriptor scrapers.Descriptor
	Scraper    scrapers.Scraper
}

// Writer is the part of the sink the pipeline depends on.
type Writer interface {
	Write(ctx context.Context, batch record.Batch, source scrapers.Descriptor, term string) (sink.Artifact, error)
}

type counters struct {
	written metric.Int64Counter
	skipped metric.Int64Counter
	failed  metric.Int64Counter
}

func newCounters() (counters, error) {
	written, err := meter.Int64Counter(
		"protscrape.records.written",
		metric.WithDescription("Records persisted to csv artifacts."),
	)
	if err != nil {
		return counters{}, err
	}
	skipped, err := meter.Int64Counter(
		"protscrape.records.skipped",
		metric.WithDescription("Upstream items that could not be turned into records."),
	)
	if err != nil {
		return counters{}, err
	}
	failed, err := meter.Int64Counter(
		"protscrape.pairs.failed",
		metric.WithDescription("Term and source pairs whose fetch or write failed."),
	)
	if err != nil {
		return counters{}, err
	}
	return counters{written: written, skipped: skipped, failed: failed}, nil
}

type Pipeline struct {
	sources   []Source
	sink      Writer
	sleep     chrono.SleepAPI
	clock     chrono.TimeAPI
	termDelay time.Duration
	tel       telemetry.API
	counters  counters
}

type Options struct {
	// TermDelay is the pause between two consecutive search terms. Nothing is
	// slept before the first term or after the last one.
	TermDelay time.Duration
	Sleep     chrono.SleepAPI
	Time      chrono.TimeAPI
}

func New(sources []Source, sink Writer, tel telemetry.API, opts Options) (*Pipeline, error) {
	assert.NotNil(sink)
	assert.NotNil(tel)
	assert.NonNegative("term delay", opts.TermDelay)

	if opts.Sleep == nil {
		opts.Sleep = chrono.NewStandardSleep()
	}
	if opts.Time == nil {
		opts.Time = chrono.NewStandardTime()
	}
	c, err := newCounters()
	if err != nil {
		return nil, fmt.Errorf("pipeline: create counters: %w", err)
	}
	return &Pipeline{
		sources:   sources,
		sink:      sink,
		sleep:     opts.Sleep,
		clock:     opts.Time,
		termDelay: opts.TermDelay,
		tel:       telemetry.NewScopedAPI("pipeline", tel),
		counters:  c,
	}, nil
}

// Build constructs an adapter for every enabled descriptor, keeping their order.
func Build(deps scrapers.Deps, descs []scrapers.Descriptor) ([]Source, error) {
	var sources []Source
	for _, d := range descs {
		if !d.Enabled {
			continue
		}
		s, err := registry.New(deps, d)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", d.Name, err)
		}
		sources = append(sources, Source{Descriptor: d, Scraper: s})
	}
	return sources, nil
}

// Run visits every (term, source) pair in order. It never fails as a whole,
// per-pair failures are recorded in the Summary. Cancelling ctx stops the run
// before the next pair.
func (p *Pipeline) Run(ctx context.Context, terms []string) Summary {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	summary := Summary{Started: p.clock.Now()}

	for i, term := range terms {
		if i > 0 && p.termDelay > 0 {
			err := p.sleep.Sleep(ctx, p.termDelay)
			if err != nil {
				summary.Cancelled = true
				break
			}
		}

		p.tel.ReportDebug("processing search term", term)
		for _, source := range p.sources {
			if ctx.Err() != nil {
				summary.Cancelled = true
				break
			}
			summary.Outcomes = append(summary.Outcomes, p.runPair(ctx, source, term))
		}
		if summary.Cancelled {
			break
		}
	}

	if summary.Cancelled {
		span.SetStatus(codes.Error, "run cancelled")
		p.tel.ReportWarning(report_pipeline_fetch, fmt.Errorf("run cancelled: %w", ctx.Err()))
	}
	summary.Finished = p.clock.Now()
	return summary
}

// fetch calls the adapter, turning a panic into an error.
func (p *Pipeline) fetch(ctx context.Context, source Source, term string) (batch record.Batch, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.tel.ReportBroken(report_pipeline_panic, fmt.Errorf("%v", r), source.Descriptor.Name, term, string(debug.Stack()))
			batch = record.Batch{}
			err = fmt.Errorf("adapter panicked: %v", r)
		}
	}()
	return source.Scraper.Fetch(ctx, term, source.Descriptor.MaxResults)
}

func (p *Pipeline) runPair(ctx context.Context, source Source, term string) Outcome {
	name := source.Descriptor.Name
	ctx, span := tracer.Start(ctx, "runPair")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", name),
		attribute.String("term", term),
	)
	attrs := metric.WithAttributes(attribute.String("source", name))

	outcome := Outcome{Term: term, Source: name}

	batch, err := p.fetch(ctx, source, term)
	if err != nil {
		p.tel.ReportBroken(report_pipeline_fetch, err, name, term)
		span.RecordError(err)
		outcome.Err = err
		batch = record.Batch{}
	}
	for _, skip := range batch.Skipped {
		p.tel.ReportWarning(report_pipeline_skip, name, term, skip.String())
	}
	outcome.Records = batch.Len()
	outcome.Skipped = len(batch.Skipped)
	p.counters.skipped.Add(ctx, int64(outcome.Skipped), attrs)

	artifact, werr := p.sink.Write(ctx, batch, source.Descriptor, term)
	if werr != nil {
		p.tel.ReportBroken(report_pipeline_write, werr, name, term)
		span.RecordError(werr)
		outcome.Err = errors.Join(outcome.Err, werr)
	} else if artifact.Path != "" {
		outcome.Artifact = artifact.Path
		p.counters.written.Add(ctx, int64(artifact.Rows), attrs)
	}

	if outcome.Err != nil {
		span.SetStatus(codes.Error, outcome.Err.Error())
		p.counters.failed.Add(ctx, 1, attrs)
	}
	return outcome
}
