package crawler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "sjsage522/listingwatcher/pkg/errors"
)

const searchURL = "https://www.example.com/catalog?search_text=gold"

func newTestPolicy(f Fetcher, s *recordingSleeper, opts ...PolicyOption) *Policy {
	opts = append([]PolicyOption{
		WithSleeper(s.sleep),
		WithJitterSource(func(time.Duration) time.Duration { return 0 }),
	}, opts...)
	return NewPolicy(f, PolicyConfig{
		MaxAttempts: 3,
		BaseDelay:   750 * time.Millisecond,
		Jitter:      400 * time.Millisecond,
	}, opts...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status    int
		extracted int
		want      Outcome
	}{
		{200, 3, Success},
		{200, 0, TransientFailure},
		{301, 1, Success},
		{404, 2, Success},
		{404, 0, TransientFailure},
		{401, 5, HardBlocked},
		{403, 0, HardBlocked},
		{429, 10, HardBlocked},
		{500, 4, TransientFailure},
		{503, 0, TransientFailure},
		{0, 0, TransientFailure},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status, tt.extracted), "status %d, %d ids", tt.status, tt.extracted)
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "transient_failure", TransientFailure.String())
	assert.Equal(t, "hard_blocked", HardBlocked.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestRetrieveRecoversAfterTransientFailures(t *testing.T) {
	f := newScriptedFetcher(transient(), transient(), okPage("1", "2"))
	s := &recordingSleeper{}
	obs := &countingObserver{}

	res := newTestPolicy(f, s, WithObserver(obs)).Retrieve(context.Background(), searchURL)

	assert.Equal(t, Success, res.Outcome)
	assert.True(t, res.OK())
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, s.delays, 2)
	assert.Equal(t, []time.Duration{750 * time.Millisecond, 1500 * time.Millisecond}, s.delays)
	assert.Equal(t, []string{"1", "2"}, res.Extraction.IDs)
	assert.Equal(t, "https://www.example.com/items/1", res.Extraction.URLs[0])
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"transient_failure", "transient_failure", "success"}, obs.outcomes)
}

func TestRetrieveHardBlockDoesNotRetry(t *testing.T) {
	f := newScriptedFetcher(blocked(), okPage("1"))
	s := &recordingSleeper{}

	res := newTestPolicy(f, s).Retrieve(context.Background(), searchURL)

	assert.Equal(t, HardBlocked, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, s.delays)
	assert.Equal(t, 1, f.callCount())
	assert.Equal(t, 403, res.Status)
	assert.Equal(t, "<html><body>Access denied</body></html>", res.Snippet)
	assert.True(t, werrors.IsHardBlocked(res.Err))
	assert.Equal(t, 0, res.Extraction.Len())
}

func TestRetrieveHardBlockAfterTransient(t *testing.T) {
	f := newScriptedFetcher(transient(), statusPage(429, "slow down"))
	s := &recordingSleeper{}

	res := newTestPolicy(f, s).Retrieve(context.Background(), searchURL)

	assert.Equal(t, HardBlocked, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, s.delays, 1)
}

func TestRetrieveExhaustsBudget(t *testing.T) {
	f := newScriptedFetcher(transient(), transient(), transient(), okPage("1"))
	s := &recordingSleeper{}

	res := newTestPolicy(f, s).Retrieve(context.Background(), searchURL)

	assert.Equal(t, TransientFailure, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, f.callCount(), "no fourth attempt")
	assert.Len(t, s.delays, 2)
	assert.Equal(t, "<html><body> Service temporarily unavailable </body></html>", res.Snippet)
	assert.True(t, werrors.IsTransient(res.Err))
}

func TestRetrieveEmptyPageIsTransient(t *testing.T) {
	f := newScriptedFetcher(statusPage(200, "<html><body>No results</body></html>"))
	s := &recordingSleeper{}

	res := newTestPolicy(f, s).Retrieve(context.Background(), searchURL)

	assert.Equal(t, TransientFailure, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 200, res.Status)
}

func TestRetrieveTransportErrorIsTransient(t *testing.T) {
	f := newScriptedFetcher(step{err: errors.New("connection reset")}, okPage("7"))
	s := &recordingSleeper{}

	res := newTestPolicy(f, s).Retrieve(context.Background(), searchURL)

	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []string{"7"}, res.Extraction.IDs)
}

func TestRetrieveCancelledDuringBackoff(t *testing.T) {
	f := newScriptedFetcher(transient(), okPage("1"))
	s := &recordingSleeper{err: context.Canceled}

	res := newTestPolicy(f, s).Retrieve(context.Background(), searchURL)

	assert.Equal(t, TransientFailure, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, f.callCount())
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRetrieveInvalidURL(t *testing.T) {
	f := newScriptedFetcher(okPage("1"))
	res := newTestPolicy(f, &recordingSleeper{}).Retrieve(context.Background(), "not a url")

	assert.Equal(t, TransientFailure, res.Outcome)
	assert.Equal(t, 0, f.callCount())
	require.Error(t, res.Err)
}

func TestBackoffIncludesJitter(t *testing.T) {
	p := NewPolicy(newScriptedFetcher(okPage("1")), PolicyConfig{
		MaxAttempts: 3,
		BaseDelay:   750 * time.Millisecond,
		Jitter:      400 * time.Millisecond,
	})

	for n := 1; n <= 3; n++ {
		for i := 0; i < 50; i++ {
			d := p.Backoff(n)
			assert.GreaterOrEqual(t, d, time.Duration(n)*750*time.Millisecond)
			assert.Less(t, d, time.Duration(n)*750*time.Millisecond+400*time.Millisecond)
		}
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy(newScriptedFetcher(okPage("1")), PolicyConfig{})
	assert.Equal(t, DefaultMaxAttempts, p.maxAttempts)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNextState(t *testing.T) {
	assert.Equal(t, stateDone, next(Success, 1, 3))
	assert.Equal(t, stateDone, next(HardBlocked, 1, 3))
	assert.Equal(t, stateBackoff, next(TransientFailure, 1, 3))
	assert.Equal(t, stateBackoff, next(TransientFailure, 2, 3))
	assert.Equal(t, stateDone, next(TransientFailure, 3, 3))
}

func TestSnippetIsBounded(t *testing.T) {
	f := newScriptedFetcher(statusPage(429, strings.Repeat("blocked ", 200)))
	res := newTestPolicy(f, &recordingSleeper{}).Retrieve(context.Background(), searchURL)

	assert.Equal(t, HardBlocked, res.Outcome)
	assert.LessOrEqual(t, len([]rune(res.Snippet)), 250)
}
