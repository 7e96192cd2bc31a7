package core

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/baxromumarov/job-collector/internal/httpx"
	"github.com/baxromumarov/job-collector/internal/lock"
	"github.com/baxromumarov/job-collector/internal/model"
	"github.com/baxromumarov/job-collector/internal/scraper"
	"github.com/baxromumarov/job-collector/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	listings []model.Listing
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(_ context.Context, _, _ string, maxCount int) (scraper.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return scraper.FetchResult{}, f.err
	}
	out := f.listings
	if len(out) > maxCount {
		out = out[:maxCount]
	}
	return scraper.FetchResult{Listings: out, Pages: 1}, nil
}

type fakeEnricher struct {
	mu     sync.Mutex
	byLink map[string]model.Enrichment
	panics map[string]bool
	calls  []string
	times  []time.Time
}

func (e *fakeEnricher) Enrich(_ context.Context, link string) model.Enrichment {
	e.mu.Lock()
	e.calls = append(e.calls, link)
	e.times = append(e.times, time.Now())
	e.mu.Unlock()
	if e.panics[link] {
		panic("boom")
	}
	return e.byLink[link]
}

type failingStore struct {
	store.Store
	err error
}

func (s failingStore) AppendAll(context.Context, []model.JobRecord) error {
	return &store.StorageError{Op: "write", Path: "test", Err: s.err}
}

type recordingNotifier struct {
	results []model.CycleResult
}

func (n *recordingNotifier) NotifyCycle(_ context.Context, res model.CycleResult) error {
	n.results = append(n.results, res)
	return nil
}

var fixedNow = time.Date(2026, 10, 19, 9, 15, 30, 500_000_000, time.UTC)

func listing(id, title string) model.Listing {
	return model.Listing{
		Link:     "https://il.linkedin.com/jobs/view/" + id,
		Title:    title,
		Company:  "Acme",
		Location: "Tel Aviv, Israel",
	}
}

func newTestCollector(t *testing.T, f scraper.ListingFetcher, e scraper.DetailEnricher, s store.Store, opts ...Option) *Collector {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewCollector(f, e, s, CollectorConfig{
		Query:    "Data Scientist",
		Location: "Israel",
		MaxCount: 75,
	}, opts...)
}

func TestCollectorThreeListingScenario(t *testing.T) {
	ctx := context.Background()
	st := store.NewCSVStore(filepath.Join(t.TempDir(), "jobs.csv"))
	require.NoError(t, st.AppendAll(ctx, []model.JobRecord{{
		Key: "https://linkedin.com/jobs/view/2", Title: "Existing", Company: "Acme", Location: "Israel",
		Degree: model.NotSpecified, Experience: model.NotSpecified, CollectedAt: fixedNow.Add(-time.Hour).Truncate(time.Second),
	}}))

	f := &fakeFetcher{listings: []model.Listing{
		listing("1", "Data Scientist"),
		listing("2", "Existing again"),
		listing("3", "ML Engineer"),
	}}
	e := &fakeEnricher{byLink: map[string]model.Enrichment{
		"https://il.linkedin.com/jobs/view/1": {Degree: "Master", Experience: "3 years"},
		"https://il.linkedin.com/jobs/view/3": {Miss: "status 404"},
	}}
	n := &recordingNotifier{}
	c := newTestCollector(t, f, e, st, WithNotifier(n))

	res, err := c.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 2, res.New)
	assert.Equal(t, 1, res.Duplicate)
	assert.Equal(t, 1, res.EnrichmentMisses)
	assert.False(t, res.Failed())
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, []string{"https://il.linkedin.com/jobs/view/1", "https://il.linkedin.com/jobs/view/3"}, e.calls)

	records, err := st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "https://linkedin.com/jobs/view/1", records[1].Key)
	assert.Equal(t, "Master", records[1].Degree)
	assert.Equal(t, "3 years", records[1].Experience)
	assert.Equal(t, "https://linkedin.com/jobs/view/3", records[2].Key)
	assert.Equal(t, model.NotSpecified, records[2].Degree)
	assert.Equal(t, model.NotSpecified, records[2].Experience)
	assert.Equal(t, fixedNow.Truncate(time.Second), records[1].CollectedAt)
	assert.Equal(t, records[1].CollectedAt, records[2].CollectedAt)

	require.Len(t, n.results, 1)
	assert.Len(t, n.results[0].Added, 2)

	// a second cycle over the same listings adds nothing and leaves the file untouched
	before, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	res, err = c.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.New)
	assert.Equal(t, 3, res.Duplicate)
	after, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, e.calls, 2, "duplicates are not enriched")
}

func TestCollectorFetchFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	st := store.NewCSVStore(filepath.Join(t.TempDir(), "jobs.csv"))
	require.NoError(t, st.AppendAll(ctx, []model.JobRecord{{Key: "https://linkedin.com/jobs/view/9", Title: "Kept", Company: "A", Location: "B"}}))
	before, err := os.ReadFile(st.Path())
	require.NoError(t, err)

	f := &fakeFetcher{err: &httpx.FetchError{URL: "https://www.linkedin.com/jobs-guest", Status: http.StatusTooManyRequests}}
	e := &fakeEnricher{}
	n := &recordingNotifier{}
	c := newTestCollector(t, f, e, st, WithNotifier(n))

	res, err := c.RunCycle(ctx)
	require.Error(t, err)
	var fe *httpx.FetchError
	assert.True(t, errors.As(err, &fe))
	assert.True(t, res.Failed())
	assert.Equal(t, 0, res.New)
	assert.Empty(t, e.calls)

	after, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	require.Len(t, n.results, 1)
	assert.True(t, n.results[0].Failed())
}

func TestCollectorStorageFailure(t *testing.T) {
	ctx := context.Background()
	base := store.NewCSVStore(filepath.Join(t.TempDir(), "jobs.csv"))
	st := failingStore{Store: base, err: errors.New("disk full")}

	f := &fakeFetcher{listings: []model.Listing{listing("1", "Data Scientist")}}
	c := newTestCollector(t, f, &fakeEnricher{}, st)

	res, err := c.RunCycle(ctx)
	require.Error(t, err)
	var se *store.StorageError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, 0, res.New)
	assert.Equal(t, 1, res.Fetched)
	assert.Nil(t, res.Added)
}

func TestCollectorEnricherPanicYieldsSentinels(t *testing.T) {
	ctx := context.Background()
	st := store.NewCSVStore(filepath.Join(t.TempDir(), "jobs.csv"))
	f := &fakeFetcher{listings: []model.Listing{listing("1", "Data Scientist")}}
	e := &fakeEnricher{panics: map[string]bool{"https://il.linkedin.com/jobs/view/1": true}}
	c := newTestCollector(t, f, e, st)

	res, err := c.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Equal(t, 1, res.EnrichmentMisses)

	records, err := st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.NotSpecified, records[0].Degree)
}

func TestCollectorRepeatedAndUnkeyableListings(t *testing.T) {
	ctx := context.Background()
	st := store.NewCSVStore(filepath.Join(t.TempDir(), "jobs.csv"))
	f := &fakeFetcher{listings: []model.Listing{
		listing("1", "Data Scientist"),
		{Link: "https://www.linkedin.com/jobs/view/1/?trk=x", Title: "Data Scientist"},
		{Link: "", Title: "No link"},
	}}
	e := &fakeEnricher{}
	c := newTestCollector(t, f, e, st)

	res, err := c.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 1, res.New)
	assert.Equal(t, 1, res.Duplicate)
	assert.Equal(t, 1, res.ParseFailures)
	assert.Len(t, e.calls, 1)
}

func TestCollectorPacesEnrichment(t *testing.T) {
	ctx := context.Background()
	st := store.NewCSVStore(filepath.Join(t.TempDir(), "jobs.csv"))
	f := &fakeFetcher{listings: []model.Listing{listing("1", "A"), listing("2", "B"), listing("3", "C")}}
	e := &fakeEnricher{}
	c := NewCollector(f, e, st, CollectorConfig{MaxCount: 10, RequestDelay: 50 * time.Millisecond})

	_, err := c.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, e.times, 3)
	assert.GreaterOrEqual(t, e.times[1].Sub(e.times[0]), 40*time.Millisecond)
	assert.GreaterOrEqual(t, e.times[2].Sub(e.times[1]), 40*time.Millisecond)
}

func TestCollectorRespectsMaxCount(t *testing.T) {
	ctx := context.Background()
	st := store.NewCSVStore(filepath.Join(t.TempDir(), "jobs.csv"))
	f := &fakeFetcher{listings: []model.Listing{listing("1", "A"), listing("2", "B"), listing("3", "C")}}
	c := newTestCollector(t, f, &fakeEnricher{}, st)

	res, err := c.Collect(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.New)
}

func TestCollectorLockHeld(t *testing.T) {
	ctx := context.Background()
	st := store.NewCSVStore(filepath.Join(t.TempDir(), "jobs.csv"))
	locker := lock.NewLocal()
	release, err := locker.Acquire(ctx)
	require.NoError(t, err)
	defer release()

	f := &fakeFetcher{listings: []model.Listing{listing("1", "A")}}
	c := newTestCollector(t, f, &fakeEnricher{}, st, WithLocker(locker))

	_, err = c.RunCycle(ctx)
	assert.ErrorIs(t, err, ErrCycleInProgress)
	assert.Zero(t, f.calls)
	_, statErr := os.Stat(st.Path())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestCollectorCancelledBeforePersist(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := store.NewCSVStore(filepath.Join(t.TempDir(), "jobs.csv"))
	f := &fakeFetcher{listings: []model.Listing{listing("1", "A")}}
	e := &cancellingEnricher{cancel: cancel}
	c := newTestCollector(t, f, e, st)

	_, err := c.RunCycle(ctx)
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(st.Path())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

type cancellingEnricher struct {
	cancel context.CancelFunc
}

func (e *cancellingEnricher) Enrich(context.Context, string) model.Enrichment {
	e.cancel()
	return model.Enrichment{}
}
