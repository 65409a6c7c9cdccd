package ics

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "sessioncal/internal/log"
	"sessioncal/internal/model"
)

// Sink receives the parsed events of one feed. It must make the stored
// set for source equal to events.
type Sink interface {
	ReplaceSource(ctx context.Context, source string, events []model.CalendarEvent) (int, error)
}

// Refresher re-imports the configured feeds on a cron schedule.
type Refresher struct {
	fetcher  *Fetcher
	sink     Sink
	sources  []Source
	onUpdate func()
}

// NewRefresher wires a fetcher to a sink. onUpdate, if set, runs after
// every refresh that wrote at least one feed.
func NewRefresher(fetcher *Fetcher, sink Sink, sources []Source, onUpdate func()) *Refresher {
	return &Refresher{fetcher: fetcher, sink: sink, sources: sources, onUpdate: onUpdate}
}

// RefreshOnce fetches, parses and stores every feed. A feed that fails to
// download or parse leaves its previously imported sessions untouched.
func (r *Refresher) RefreshOnce(ctx context.Context) (int, error) {
	if len(r.sources) == 0 {
		return 0, nil
	}
	results, errs := r.fetcher.FetchAll(ctx, r.sources)
	total, feeds := 0, 0
	for _, res := range results {
		events, err := ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: parse: %w", res.Source.ID, err))
			continue
		}
		n, err := r.sink.ReplaceSource(ctx, res.Source.ID, events)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: store: %w", res.Source.ID, err))
			continue
		}
		total += n
		feeds++
	}
	if feeds > 0 && r.onUpdate != nil {
		r.onUpdate()
	}
	appLog.Info("ics refresh done", "feeds", feeds, "sessions", total, "errors", len(errs))
	return total, errors.Join(errs...)
}

// Run refreshes once, then on every tick of spec until ctx is done.
// Overlapping ticks are skipped.
func (r *Refresher) Run(ctx context.Context, spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	job := func() {
		if _, err := r.RefreshOnce(ctx); err != nil {
			appLog.Error("ics refresh failed", err)
		}
	}
	if _, err := c.AddFunc(spec, job); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}

	job()
	c.Start()
	appLog.Info("ics refresh scheduled", "spec", spec, "feeds", len(r.sources))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
