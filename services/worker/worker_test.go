package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/internal/listing"
	werrors "sjsage522/listingwatcher/pkg/errors"
	"sjsage522/listingwatcher/services/publisher"
	"sjsage522/listingwatcher/services/store"
)

const (
	goldURL   = "https://www.example.com/catalog?search_text=gold"
	silverURL = "https://www.example.com/catalog?search_text=silver"
)

var (
	_ Retriever          = (*MockRetriever)(nil)
	_ Filter             = (*MockFilter)(nil)
	_ publisher.Reporter = (*MockReporter)(nil)
	_ CycleObserver      = (*MockObserver)(nil)
)

// MockRetriever replays scripted results per URL, repeating the last one
type MockRetriever struct {
	mu      sync.Mutex
	results map[string][]crawler.Result
	calls   []string
}

func NewMockRetriever() *MockRetriever {
	return &MockRetriever{results: make(map[string][]crawler.Result)}
}

func (m *MockRetriever) page(url string, ids ...string) *MockRetriever {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(`<a href="/items/` + id + `">x</a>`)
	}
	ext := listing.Extract(b.String(), "https://www.example.com")
	m.results[url] = append(m.results[url], crawler.Result{
		Outcome:    crawler.Classify(200, ext.Len()),
		Attempts:   1,
		Status:     200,
		Extraction: ext,
	})
	return m
}

func (m *MockRetriever) blocked(url string) *MockRetriever {
	m.results[url] = append(m.results[url], crawler.Result{
		Outcome:  crawler.HardBlocked,
		Attempts: 1,
		Status:   403,
		Snippet:  "Access denied",
		Err:      werrors.NewHardBlocked(url, 403, "Access denied"),
	})
	return m
}

func (m *MockRetriever) Retrieve(ctx context.Context, url string) crawler.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, url)
	queue := m.results[url]
	if len(queue) == 0 {
		return crawler.Result{Outcome: crawler.TransientFailure, Attempts: 3}
	}
	res := queue[0]
	if len(queue) > 1 {
		m.results[url] = queue[1:]
	}
	return res
}

// MockReporter collects reports
type MockReporter struct {
	reports []publisher.Report
	err     error
}

func (m *MockReporter) Report(ctx context.Context, r publisher.Report) error {
	m.reports = append(m.reports, r)
	return m.err
}

func (m *MockReporter) Close() error { return nil }

func (m *MockReporter) last() publisher.Report {
	return m.reports[len(m.reports)-1]
}

// MockFilter keeps listings whose id is in keep
type MockFilter struct {
	keep map[string]bool
	seen [][]listing.Listing
}

func (m *MockFilter) Filter(ctx context.Context, candidates []listing.Listing) []listing.Listing {
	m.seen = append(m.seen, candidates)
	var out []listing.Listing
	for _, c := range candidates {
		if m.keep[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

type MockObserver struct {
	outcomes []string
	newIDs   int
}

func (m *MockObserver) ObserveCycle(outcome string, newIDs, reported, seen int, d time.Duration) {
	m.outcomes = append(m.outcomes, outcome)
	m.newIDs += newIDs
}

func ids(ls []listing.Listing) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func newStore(t *testing.T) *store.SeenStore {
	t.Helper()
	return store.New(filepath.Join(t.TempDir(), "seen.json"))
}

func TestRunCycleIsIdempotent(t *testing.T) {
	ret := NewMockRetriever().page(goldURL, "1", "2").page(goldURL, "1", "2")
	rep := &MockReporter{}
	w := NewWorker(ret, newStore(t), rep, []string{goldURL}, 0, false)

	first, err := w.RunCycle(context.Background(), goldURL, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(first.Listings))
	assert.Equal(t, "https://www.example.com/items/1", first.Listings[0].URL)

	second, err := w.RunCycle(context.Background(), goldURL, false)
	require.NoError(t, err)
	assert.Empty(t, second.Listings)
	assert.Equal(t, 0, second.Recorded)
	assert.Len(t, rep.reports, 2, "an empty cycle is still reported")
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestBootstrapThenReport(t *testing.T) {
	seen := newStore(t)
	ret := NewMockRetriever().page(goldURL, "1", "2", "3").page(goldURL, "1", "2", "3", "4")
	rep := &MockReporter{}
	w := NewWorker(ret, seen, rep, []string{goldURL}, 0, true)

	r, err := w.RunCycle(context.Background(), goldURL, true)
	require.NoError(t, err)
	assert.True(t, r.Bootstrap)
	assert.Empty(t, r.Listings)
	assert.Equal(t, 3, r.Recorded)

	persisted := store.Load(seen.Path())
	assert.ElementsMatch(t, []string{"1", "2", "3"}, persisted.IDs())

	r, err = w.RunCycle(context.Background(), goldURL, false)
	require.NoError(t, err)
	assert.False(t, r.Bootstrap)
	assert.Equal(t, []string{"4"}, ids(r.Listings))
}

func TestFailedCycleLeavesStoreUntouched(t *testing.T) {
	seen := newStore(t)
	seen.Add("1")
	ret := NewMockRetriever().blocked(goldURL)
	rep := &MockReporter{}
	obs := &MockObserver{}
	w := NewWorker(ret, seen, rep, []string{goldURL}, 0, false, WithMetrics(obs))

	r, err := w.RunCycle(context.Background(), goldURL, false)
	assert.True(t, werrors.IsHardBlocked(err))
	assert.True(t, r.Failed())
	assert.Equal(t, "hard_blocked", r.Outcome)
	assert.Equal(t, 1, seen.Len())

	_, statErr := os.Stat(seen.Path())
	assert.True(t, os.IsNotExist(statErr), "store is not saved on failure")

	require.Len(t, rep.reports, 1)
	assert.Equal(t, []string{"hard_blocked"}, obs.outcomes)
}

func TestExhaustedRetrievalWithoutError(t *testing.T) {
	ret := NewMockRetriever()
	w := NewWorker(ret, newStore(t), &MockReporter{}, []string{goldURL}, 0, false)

	r, err := w.RunCycle(context.Background(), goldURL, false)
	assert.True(t, werrors.IsTransient(err))
	assert.Equal(t, "transient_failure", r.Outcome)
}

func TestEmptySuccessStillSaves(t *testing.T) {
	seen := newStore(t)
	seen.Add("1")
	ret := NewMockRetriever().page(goldURL, "1")
	w := NewWorker(ret, seen, &MockReporter{}, []string{goldURL}, 0, false)

	_, err := w.RunCycle(context.Background(), goldURL, false)
	require.NoError(t, err)

	_, statErr := os.Stat(seen.Path())
	assert.NoError(t, statErr)
}

func TestDetectorFiltersNewListings(t *testing.T) {
	ret := NewMockRetriever().page(goldURL, "1", "2", "3")
	filter := &MockFilter{keep: map[string]bool{"2": true}}
	w := NewWorker(ret, newStore(t), &MockReporter{}, []string{goldURL}, 0, false, WithDetector(filter))

	r, err := w.RunCycle(context.Background(), goldURL, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(r.Listings))
	assert.Equal(t, 3, r.Recorded, "rejected candidates are still recorded as seen")
	require.Len(t, filter.seen, 1)
	assert.Len(t, filter.seen[0], 3)
}

func TestDetectorSkippedDuringBootstrapAndWhenNothingNew(t *testing.T) {
	ret := NewMockRetriever().page(goldURL, "1").page(goldURL, "1")
	filter := &MockFilter{}
	w := NewWorker(ret, newStore(t), &MockReporter{}, []string{goldURL}, 0, true, WithDetector(filter))

	_, err := w.RunCycle(context.Background(), goldURL, true)
	require.NoError(t, err)
	_, err = w.RunCycle(context.Background(), goldURL, false)
	require.NoError(t, err)

	assert.Empty(t, filter.seen)
}

func TestReporterErrorDoesNotFailCycle(t *testing.T) {
	ret := NewMockRetriever().page(goldURL, "1")
	w := NewWorker(ret, newStore(t), &MockReporter{err: errors.New("redis down")}, []string{goldURL}, 0, false)

	_, err := w.RunCycle(context.Background(), goldURL, false)
	assert.NoError(t, err)
}

func TestStartSinglePass(t *testing.T) {
	ret := NewMockRetriever().page(goldURL, "1").page(silverURL, "9")
	rep := &MockReporter{}
	slept := 0
	w := NewWorker(ret, newStore(t), rep, []string{goldURL, silverURL}, 0, false,
		WithSleeper(func(context.Context, time.Duration) error {
			slept++
			return nil
		}))

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, []string{goldURL, silverURL}, ret.calls)
	assert.Equal(t, 0, slept)
	assert.Len(t, rep.reports, 2)
}

func TestStartBootstrapsFirstPassOnly(t *testing.T) {
	ret := NewMockRetriever().
		page(goldURL, "1", "2", "3").
		page(goldURL, "1", "2", "3", "4").
		page(goldURL, "1", "2", "3", "4", "5").
		blocked(silverURL).
		page(silverURL, "20")

	rep := &MockReporter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	sleeper := func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	w := NewWorker(ret, newStore(t), rep, []string{goldURL, silverURL}, time.Minute, true, WithSleeper(sleeper))

	err := w.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute, time.Minute}, delays)

	// three passes over two URLs, in order
	require.Len(t, ret.calls, 6)
	assert.Equal(t, []string{goldURL, silverURL, goldURL, silverURL, goldURL, silverURL}, ret.calls)
	require.Len(t, rep.reports, 6)

	// pass 1: gold bootstraps, silver is hard blocked
	assert.True(t, rep.reports[0].Bootstrap)
	assert.Equal(t, 3, rep.reports[0].Recorded)
	assert.True(t, rep.reports[1].Failed())

	// pass 2: only the new gold listing; silver recovers and reports normally
	assert.False(t, rep.reports[2].Bootstrap)
	assert.Equal(t, []string{"4"}, ids(rep.reports[2].Listings))
	assert.False(t, rep.reports[3].Bootstrap)
	assert.Equal(t, []string{"20"}, ids(rep.reports[3].Listings))

	// pass 3
	assert.Equal(t, []string{"5"}, ids(rep.reports[4].Listings))
	assert.Empty(t, rep.reports[5].Listings)
}

func TestStartStopsBeforeNextURLWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ret := NewMockRetriever().page(goldURL, "1")
	w := NewWorker(ret, newStore(t), &MockReporter{}, []string{goldURL, silverURL}, time.Minute, false)

	err := w.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ret.calls)
}

func TestReportClock(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	ret := NewMockRetriever().page(goldURL, "1")
	w := NewWorker(ret, newStore(t), &MockReporter{}, []string{goldURL}, 0, false,
		WithClock(func() time.Time { return fixed }))

	r, err := w.RunCycle(context.Background(), goldURL, false)
	require.NoError(t, err)
	assert.Equal(t, fixed, r.Time)
	assert.NotEmpty(t, r.RunID)
}
