package publisher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// ConsoleReporter writes human-readable reports
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to out
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// Report implements Reporter
func (c *ConsoleReporter) Report(ctx context.Context, r Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := bufio.NewWriter(c.out)
	fmt.Fprintf(w, "[%s] %s\n", r.Time.Format(time.RFC3339), r.SearchURL)

	switch {
	case r.Failed():
		fmt.Fprintf(w, "FAILED (%s): %v\n", r.Outcome, r.Err)
	case r.Bootstrap:
		fmt.Fprintf(w, "Bootstrap: recorded %d listings without reporting.\n", r.Recorded)
	case len(r.Listings) == 0:
		fmt.Fprintln(w, "NEW: 0")
		fmt.Fprintln(w, "No new listings since last run.")
	default:
		fmt.Fprintf(w, "NEW: %d\n", len(r.Listings))
		for _, l := range r.Listings {
			fmt.Fprintln(w, l.URL)
		}
	}
	return w.Flush()
}

// Close implements Reporter
func (c *ConsoleReporter) Close() error {
	return nil
}
