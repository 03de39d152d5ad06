package publisher

import (
	"context"
	"time"

	"sjsage522/listingwatcher/internal/listing"
)

// Publisher is a message transport for reported listings
type Publisher interface {
	// Publish appends a message to the stream
	Publish(ctx context.Context, message []byte) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// Report is the result of one cycle over one search URL
type Report struct {
	RunID     string
	SearchURL string
	Time      time.Time
	// Outcome is the retrieval outcome label
	Outcome string
	// Bootstrap is set when newly observed listings were recorded silently
	Bootstrap bool
	// Recorded counts identifiers added to the seen store this cycle
	Recorded int
	// Listings are the listings reported as new
	Listings []listing.Listing
	// Err is set when the cycle failed
	Err error
}

// Failed reports whether the cycle failed
func (r Report) Failed() bool {
	return r.Err != nil
}

// Reporter delivers cycle reports to an operator-facing channel
type Reporter interface {
	Report(ctx context.Context, r Report) error
	Close() error
}
