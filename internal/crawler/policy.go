package crawler

import (
	"context"
	"math/rand"
	"time"

	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/internal/listing"
	"sjsage522/listingwatcher/logger"
	werrors "sjsage522/listingwatcher/pkg/errors"
)

// Default retry settings
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 750 * time.Millisecond
	DefaultJitter      = 400 * time.Millisecond
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// AttemptObserver receives one call per fetch attempt
type AttemptObserver interface {
	ObserveAttempt(outcome string)
}

// PolicyConfig holds the retry settings
type PolicyConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}

// PolicyOption customizes a Policy
type PolicyOption func(*Policy)

// WithSleeper replaces the wall-clock sleep
func WithSleeper(s Sleeper) PolicyOption {
	return func(p *Policy) { p.sleep = s }
}

// WithJitterSource replaces the random jitter draw
func WithJitterSource(f func(max time.Duration) time.Duration) PolicyOption {
	return func(p *Policy) { p.jitter = f }
}

// WithObserver reports every attempt outcome
func WithObserver(o AttemptObserver) PolicyOption {
	return func(p *Policy) { p.observer = o }
}

// Policy retrieves a search page with bounded retries. Hard blocks end the
// retrieval immediately; transient failures are retried with linear backoff
// plus jitter until the attempt budget is spent.
type Policy struct {
	fetcher     Fetcher
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
	sleep       Sleeper
	jitter      func(max time.Duration) time.Duration
	observer    AttemptObserver
}

// NewPolicy creates a retrieval policy over fetcher
func NewPolicy(fetcher Fetcher, cfg PolicyConfig, opts ...PolicyOption) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	p := &Policy{
		fetcher:     fetcher,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxJitter:   cfg.Jitter,
		sleep:       SleepContext,
		jitter:      randomJitter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SleepContext sleeps for d unless ctx ends first
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Backoff returns the delay before the attempt following attempt n
func (p *Policy) Backoff(n int) time.Duration {
	return p.baseDelay*time.Duration(n) + p.jitter(p.maxJitter)
}

type state int

const (
	stateAttempting state = iota
	stateBackoff
	stateDone
)

// next is the transition function of the retrieval state machine
func next(outcome Outcome, attempt, maxAttempts int) state {
	switch outcome {
	case TransientFailure:
		if attempt < maxAttempts {
			return stateBackoff
		}
		return stateDone
	default:
		return stateDone
	}
}

// Retrieve fetches searchURL and extracts listings under the retry policy.
// The returned result is terminal: Success, TransientFailure after the
// budget is exhausted, or HardBlocked.
func (p *Policy) Retrieve(ctx context.Context, searchURL string) Result {
	log := logger.ForCrawler(searchURL)

	base, err := listing.BaseOrigin(searchURL)
	if err != nil {
		return Result{
			Outcome: TransientFailure,
			Err:     werrors.NewTransient(searchURL, 0, "invalid search url: "+err.Error(), ""),
		}
	}

	var res Result
	attempt := 1
	st := stateAttempting

	for {
		switch st {
		case stateAttempting:
			res = p.attempt(ctx, searchURL, base, attempt)
			res.Attempts = attempt
			st = next(res.Outcome, attempt, p.maxAttempts)

		case stateBackoff:
			delay := p.Backoff(attempt)
			log.Warn().
				Int("attempt", attempt).
				Int("status", res.Status).
				Dur("retry_in", delay).
				Str("snippet", res.Snippet).
				Msg("Transient failure, retrying")

			if err := p.sleep(ctx, delay); err != nil {
				res.Err = werrors.NewNetwork(searchURL, "retrieval cancelled during backoff", err)
				return res
			}
			attempt++
			st = stateAttempting

		case stateDone:
			p.logTerminal(log, res)
			return res
		}
	}
}

func (p *Policy) attempt(ctx context.Context, searchURL, base string, n int) Result {
	log := logger.ForCrawler(searchURL)

	resp, err := p.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		log.Warn().Err(err).Int("attempt", n).Msg("Fetch failed without a response")
		p.observe(TransientFailure)
		return Result{
			Outcome: TransientFailure,
			Err:     werrors.NewNetwork(searchURL, "request failed", err),
		}
	}

	res := Result{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Body:        resp.Body,
	}

	log.Debug().
		Int("attempt", n).
		Int("status", resp.Status).
		Str("content_type", helpers.MediaType(resp.ContentType)).
		Int("bytes", len(resp.Body)).
		Msg("Fetched search page")

	if !IsHardBlockedStatus(resp.Status) && resp.Status < 500 {
		res.Extraction = listing.Extract(resp.Body, base)
	}
	res.Outcome = Classify(resp.Status, res.Extraction.Len())
	p.observe(res.Outcome)

	switch res.Outcome {
	case HardBlocked:
		res.Snippet = helpers.Snippet(resp.Body, helpers.SnippetLength)
		res.Err = werrors.NewHardBlocked(searchURL, resp.Status, res.Snippet)
	case TransientFailure:
		res.Snippet = helpers.Snippet(resp.Body, helpers.SnippetLength)
		msg := "server error"
		if resp.Status < 500 {
			msg = "no listings found on page"
		}
		res.Err = werrors.NewTransient(searchURL, resp.Status, msg, res.Snippet)
	}
	return res
}

func (p *Policy) observe(o Outcome) {
	if p.observer != nil {
		p.observer.ObserveAttempt(o.String())
	}
}

func (p *Policy) logTerminal(log *logger.Logger, res Result) {
	switch res.Outcome {
	case Success:
		log.Info().
			Int("attempts", res.Attempts).
			Int("listings", res.Extraction.Len()).
			Msg("Search page retrieved")
	case HardBlocked:
		log.Error().
			Int("status", res.Status).
			Str("content_type", helpers.MediaType(res.ContentType)).
			Str("snippet", res.Snippet).
			Msg("Hard blocked, skipping this cycle")
	default:
		log.Error().
			Int("attempts", res.Attempts).
			Int("status", res.Status).
			Str("snippet", res.Snippet).
			Msg("Giving up after transient failures")
	}
}
