package publisher

import (
	"context"
	"encoding/json"
	"time"

	"sjsage522/listingwatcher/logger"
	werrors "sjsage522/listingwatcher/pkg/errors"
)

// StreamMessage is the payload published per reported listing
type StreamMessage struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	SearchURL string    `json:"search_url"`
	Title     string    `json:"title,omitempty"`
	Price     *float64  `json:"price,omitempty"`
	RunID     string    `json:"run_id"`
	FoundAt   time.Time `json:"found_at"`
}

// StreamReporter publishes every reported listing as one message.
// Failed and bootstrap cycles publish nothing.
type StreamReporter struct {
	publisher Publisher
}

// NewStreamReporter creates a reporter on top of publisher
func NewStreamReporter(p Publisher) *StreamReporter {
	return &StreamReporter{publisher: p}
}

// Report implements Reporter
func (s *StreamReporter) Report(ctx context.Context, r Report) error {
	if r.Failed() || r.Bootstrap || len(r.Listings) == 0 {
		return nil
	}

	log := logger.ForPublisher()
	for _, l := range r.Listings {
		data, err := json.Marshal(StreamMessage{
			ID:        l.ID,
			URL:       l.URL,
			SearchURL: r.SearchURL,
			Title:     l.Title,
			Price:     l.Price,
			RunID:     r.RunID,
			FoundAt:   r.Time.UTC(),
		})
		if err != nil {
			return werrors.NewPublisher(r.SearchURL, "failed to encode listing", err)
		}
		if err := s.publisher.Publish(ctx, data); err != nil {
			return err
		}
	}

	if err := s.publisher.TrimStreams(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to trim stream")
	}

	log.Debug().
		Str("run_id", r.RunID).
		Int("count", len(r.Listings)).
		Msg("Listings published")
	return nil
}

// Close closes the underlying publisher
func (s *StreamReporter) Close() error {
	return s.publisher.Close()
}
