package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/internal/listing"
	"sjsage522/listingwatcher/logger"
	werrors "sjsage522/listingwatcher/pkg/errors"
	"sjsage522/listingwatcher/services/publisher"
	"sjsage522/listingwatcher/services/store"
)

// Retriever fetches a search page under the retry policy
type Retriever interface {
	Retrieve(ctx context.Context, searchURL string) crawler.Result
}

// Filter narrows newly observed listings before they are reported
type Filter interface {
	Filter(ctx context.Context, candidates []listing.Listing) []listing.Listing
}

// CycleObserver records finished cycles
type CycleObserver interface {
	ObserveCycle(outcome string, newIDs, reported, seen int, d time.Duration)
}

// Option customizes a Worker
type Option func(*Worker)

// WithDetector enables the detail-page filter stage
func WithDetector(f Filter) Option {
	return func(w *Worker) { w.detector = f }
}

// WithMetrics records every cycle on o
func WithMetrics(o CycleObserver) Option {
	return func(w *Worker) { w.metrics = o }
}

// WithSleeper replaces the inter-pass sleep
func WithSleeper(s crawler.Sleeper) Option {
	return func(w *Worker) { w.sleep = s }
}

// WithClock replaces the report clock
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// Worker runs cycles over the configured search URLs. Everything happens on
// the calling goroutine: one URL at a time, one pass at a time.
type Worker struct {
	retriever  Retriever
	seen       *store.SeenStore
	reporter   publisher.Reporter
	detector   Filter
	metrics    CycleObserver
	searchURLs []string
	interval   time.Duration
	bootstrap  bool
	sleep      crawler.Sleeper
	now        func() time.Time
}

// NewWorker creates a new worker. An interval of zero runs a single pass.
func NewWorker(
	retriever Retriever,
	seen *store.SeenStore,
	reporter publisher.Reporter,
	searchURLs []string,
	interval time.Duration,
	bootstrap bool,
	opts ...Option,
) *Worker {
	w := &Worker{
		retriever:  retriever,
		seen:       seen,
		reporter:   reporter,
		searchURLs: searchURLs,
		interval:   interval,
		bootstrap:  bootstrap,
		sleep:      crawler.SleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs passes until ctx is cancelled, or exactly one pass when no
// interval is configured. Bootstrap suppression applies to the first pass.
func (w *Worker) Start(ctx context.Context) error {
	log := logger.ForWorker()

	for pass := 1; ; pass++ {
		start := time.Now()
		w.runPass(ctx, w.bootstrap && pass == 1)
		log.Info().
			Int("pass", pass).
			Dur("elapsed", time.Since(start)).
			Int("seen_count", w.seen.Len()).
			Msg("Pass finished")

		if w.interval <= 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Debug().Dur("interval", w.interval).Msg("Sleeping until next pass")
		if err := w.sleep(ctx, w.interval); err != nil {
			return err
		}
	}
}

// runPass runs one cycle per search URL, in order
func (w *Worker) runPass(ctx context.Context, bootstrap bool) {
	for _, u := range w.searchURLs {
		if ctx.Err() != nil {
			return
		}
		// failures are scoped to one URL; the pass continues
		_, _ = w.RunCycle(ctx, u, bootstrap)
	}
}

// RunCycle retrieves one search page, records unseen identifiers and reports
// them. The seen store is left untouched when retrieval fails.
func (w *Worker) RunCycle(ctx context.Context, searchURL string, bootstrap bool) (publisher.Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logger.ForWorker().WithStr("run_id", runID).WithStr("url", searchURL)

	log.Info().
		Str("seen_path", w.seen.Path()).
		Int("seen_count", w.seen.Len()).
		Bool("bootstrap", bootstrap).
		Msg("Cycle started")

	res := w.retriever.Retrieve(ctx, searchURL)
	report := publisher.Report{
		RunID:     runID,
		SearchURL: searchURL,
		Time:      w.now(),
		Outcome:   res.Outcome.String(),
	}

	if !res.OK() {
		report.Err = res.Err
		if report.Err == nil {
			report.Err = werrors.NewTransient(searchURL, res.Status, "retrieval failed", res.Snippet)
		}
		log.Error().
			Err(report.Err).
			Int("attempts", res.Attempts).
			Bool("transient", werrors.IsTransient(report.Err)).
			Msg("Cycle failed")
		w.deliver(ctx, report)
		w.observe(report, 0, time.Since(start))
		return report, report.Err
	}

	fresh := make([]listing.Listing, 0)
	for _, l := range res.Extraction.Listings() {
		if w.seen.Add(l.ID) {
			fresh = append(fresh, l)
		}
	}
	report.Recorded = len(fresh)

	saveErr := w.seen.Save()
	if saveErr != nil {
		log.Error().Err(saveErr).Msg("Failed to persist seen store")
	}

	switch {
	case bootstrap:
		report.Bootstrap = true
	case w.detector != nil && len(fresh) > 0:
		report.Listings = w.detector.Filter(ctx, fresh)
	default:
		report.Listings = fresh
	}

	log.Info().
		Int("found", res.Extraction.Len()).
		Int("new", report.Recorded).
		Int("reported", len(report.Listings)).
		Msg("Cycle finished")

	w.deliver(ctx, report)
	w.observe(report, report.Recorded, time.Since(start))
	return report, saveErr
}

func (w *Worker) deliver(ctx context.Context, r publisher.Report) {
	if err := w.reporter.Report(ctx, r); err != nil {
		logger.ForWorker().Error().Err(err).Str("url", r.SearchURL).Msg("Failed to deliver report")
	}
}

func (w *Worker) observe(r publisher.Report, newIDs int, d time.Duration) {
	if w.metrics == nil {
		return
	}
	w.metrics.ObserveCycle(r.Outcome, newIDs, len(r.Listings), w.seen.Len(), d)
}
