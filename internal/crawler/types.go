package crawler

import (
	"context"
	"net/http"

	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/internal/listing"
)

// Outcome classifies a single retrieval attempt
type Outcome int

const (
	// Success means an acceptable status and at least one listing
	Success Outcome = iota
	// TransientFailure means a server error, a transport error or an empty result page
	TransientFailure
	// HardBlocked means the remote rejected the request (401/403/429)
	HardBlocked
)

// String returns the label used in logs and metrics
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TransientFailure:
		return "transient_failure"
	case HardBlocked:
		return "hard_blocked"
	default:
		return "unknown"
	}
}

// Fetcher is the page retrieval capability. Any HTTP status is a response;
// an error means no response was obtained at all.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*helpers.Response, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, url string) (*helpers.Response, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*helpers.Response, error) {
	return f(ctx, url)
}

// IsHardBlockedStatus reports whether status is an authoritative rejection
func IsHardBlockedStatus(status int) bool {
	return status == http.StatusUnauthorized ||
		status == http.StatusForbidden ||
		status == http.StatusTooManyRequests
}

// Classify maps a status code and the number of extracted listings to an
// outcome. It does not depend on the attempt number.
func Classify(status int, extracted int) Outcome {
	if IsHardBlockedStatus(status) {
		return HardBlocked
	}
	if status >= http.StatusInternalServerError || status == 0 || extracted == 0 {
		return TransientFailure
	}
	return Success
}

// Result is the terminal state of a retrieval
type Result struct {
	Outcome     Outcome
	Attempts    int
	Status      int
	ContentType string
	Body        string
	Extraction  listing.Extraction
	Snippet     string
	// Err is a *errors.WatchError describing a failed retrieval
	Err error
}

// OK reports whether the retrieval succeeded
func (r Result) OK() bool {
	return r.Outcome == Success
}
