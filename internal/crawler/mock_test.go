package crawler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sjsage522/listingwatcher/helpers"
)

var (
	_ Fetcher = (*scriptedFetcher)(nil)
	_ Fetcher = (*FallbackFetcher)(nil)
	_ Fetcher = (*CooldownFetcher)(nil)
	_ Fetcher = (*BrowserFetcher)(nil)
	_ Fetcher = (*helpers.Client)(nil)
)

// step is one scripted fetch result
type step struct {
	status int
	body   string
	err    error
}

// scriptedFetcher replays steps in order and repeats the last one
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []step
	calls []string
}

func newScriptedFetcher(steps ...step) *scriptedFetcher {
	return &scriptedFetcher{steps: steps}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, url string) (*helpers.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.calls)
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls = append(f.calls, url)

	s := f.steps[i]
	if s.err != nil {
		return nil, s.err
	}
	return &helpers.Response{
		Status:      s.status,
		ContentType: "text/html; charset=utf-8",
		Body:        s.body,
		FinalURL:    url,
	}, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingSleeper records requested delays without waiting
type recordingSleeper struct {
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

type countingObserver struct {
	outcomes []string
}

func (o *countingObserver) ObserveAttempt(outcome string) {
	o.outcomes = append(o.outcomes, outcome)
}

// failingCache fails every operation
type failingCache struct{}

func (failingCache) Get(string) ([]byte, error) { return nil, errors.New("connection refused") }
func (failingCache) Set(string, []byte, time.Duration) error { return errors.New("connection refused") }
func (failingCache) Delete(string) error { return errors.New("connection refused") }

func okPage(ids ...string) step {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		b.WriteString(`<a href="/items/` + id + `-thing">x</a>`)
	}
	b.WriteString("</body></html>")
	return step{status: 200, body: b.String()}
}

func statusPage(status int, body string) step {
	return step{status: status, body: body}
}

func transient() step {
	return statusPage(503, "<html><body>  Service   temporarily\n unavailable </body></html>")
}

func blocked() step {
	return statusPage(403, "<html><body>Access denied</body></html>")
}
