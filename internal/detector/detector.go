// Package detector filters newly observed listings by inspecting their
// detail pages.
package detector

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/internal/listing"
	"sjsage522/listingwatcher/logger"
)

// DefaultDebugCandidates bounds the diagnostics logged per Filter call
const DefaultDebugCandidates = 5

// Verdict labels for metrics
const (
	VerdictAccepted  = "accepted"
	VerdictRejected  = "rejected"
	VerdictDiscarded = "discarded"
)

// VerdictObserver receives one call per evaluated candidate
type VerdictObserver interface {
	ObserveVerdict(verdict string)
}

// Detector fetches each candidate's detail page once and keeps those the
// strategy accepts. Candidates whose page cannot be confirmed are dropped.
type Detector struct {
	fetcher    crawler.Fetcher
	strategy   Strategy
	debugLimit int
	observer   VerdictObserver
}

// New creates a detector
func New(fetcher crawler.Fetcher, strategy Strategy, debugLimit int, observer VerdictObserver) *Detector {
	if debugLimit < 0 {
		debugLimit = 0
	}
	return &Detector{
		fetcher:    fetcher,
		strategy:   strategy,
		debugLimit: debugLimit,
		observer:   observer,
	}
}

// Filter returns the accepted candidates in input order. Detail pages are
// fetched one at a time with no retry.
func (d *Detector) Filter(ctx context.Context, candidates []listing.Listing) []listing.Listing {
	log := logger.ForDetector().WithStr("strategy", d.strategy.Name())

	accepted := make([]listing.Listing, 0, len(candidates))
	debugged := 0

	for i, c := range candidates {
		if ctx.Err() != nil {
			log.Warn().Int("remaining", len(candidates)-i).Msg("Detector interrupted")
			break
		}

		resp, err := d.fetcher.Fetch(ctx, c.URL)
		if err != nil {
			log.Warn().Err(err).Str("url", c.URL).Msg("Detail fetch failed, discarding candidate")
			d.observe(VerdictDiscarded)
			continue
		}
		if resp.Status >= 400 {
			log.Warn().Int("status", resp.Status).Str("url", c.URL).Msg("Detail page unavailable, discarding candidate")
			d.observe(VerdictDiscarded)
			continue
		}

		v := d.strategy.Evaluate(resp.Body)
		title := ListingTitle(resp.Body)

		if debugged < d.debugLimit && logger.IsDebugEnabled() {
			debugged++
			ev := log.Debug().
				Str("url", c.URL).
				Str("title", title).
				Int("positive", v.Positive).
				Int("negative", v.Negative).
				Str("reason", v.Reason)
			if v.HasPrice {
				ev = ev.Float64("price", v.Price)
			}
			ev.Msg("Candidate evaluated")
		}

		if !v.Accepted {
			d.observe(VerdictRejected)
			continue
		}
		d.observe(VerdictAccepted)

		c.Title = title
		price := v.Price
		c.Price = &price
		accepted = append(accepted, c)
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("accepted", len(accepted)).
		Msg("Detector finished")
	return accepted
}

func (d *Detector) observe(verdict string) {
	if d.observer != nil {
		d.observer.ObserveVerdict(verdict)
	}
}

// ListingTitle returns the og:title of a detail page, falling back to
// <title>. Empty when neither is present.
func ListingTitle(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
