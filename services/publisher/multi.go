package publisher

import (
	"context"
	"errors"

	"sjsage522/listingwatcher/logger"
)

// MultiReporter fans a report out to several reporters. One reporter
// failing does not stop the others.
type MultiReporter struct {
	reporters []Reporter
}

// NewMultiReporter combines reporters
func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

// Report implements Reporter
func (m *MultiReporter) Report(ctx context.Context, r Report) error {
	var errs []error
	for _, rep := range m.reporters {
		if err := rep.Report(ctx, r); err != nil {
			logger.ForPublisher().Error().Err(err).Str("url", r.SearchURL).Msg("Reporter failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every reporter
func (m *MultiReporter) Close() error {
	var errs []error
	for _, rep := range m.reporters {
		if err := rep.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
