package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baxromumarov/job-collector/internal/lock"
	"github.com/baxromumarov/job-collector/internal/model"
	"github.com/baxromumarov/job-collector/internal/notify"
	"github.com/baxromumarov/job-collector/internal/observability"
	"github.com/baxromumarov/job-collector/internal/scraper"
	"github.com/baxromumarov/job-collector/internal/store"
	"github.com/baxromumarov/job-collector/internal/urlutil"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var ErrCycleInProgress = errors.New("collection cycle already in progress")

// CollectorConfig is the search a cycle runs and how fast detail pages are read.
type CollectorConfig struct {
	Query        string
	Location     string
	MaxCount     int
	RequestDelay time.Duration
}

type Option func(*Collector)

func WithLocker(l lock.Locker) Option {
	return func(c *Collector) { c.locker = l }
}

func WithNotifier(n notify.Notifier) Option {
	return func(c *Collector) { c.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// Collector runs collection cycles: fetch, deduplicate, enrich, persist.
type Collector struct {
	fetcher  scraper.ListingFetcher
	enricher scraper.DetailEnricher
	store    store.Store
	locker   lock.Locker
	notifier notify.Notifier
	cfg      CollectorConfig
	now      func() time.Time
}

func NewCollector(f scraper.ListingFetcher, e scraper.DetailEnricher, s store.Store, cfg CollectorConfig, opts ...Option) *Collector {
	c := &Collector{
		fetcher:  f,
		enricher: e,
		store:    s,
		locker:   lock.NewLocal(),
		notifier: notify.Log{},
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunCycle runs one cycle with the configured maximum count.
func (c *Collector) RunCycle(ctx context.Context) (model.CycleResult, error) {
	return c.Collect(ctx, c.cfg.MaxCount)
}

// Collect runs one cycle fetching at most maxCount listings. The store is only
// touched by a single AppendAll once every new listing has been enriched; any
// failure before that leaves it unchanged.
func (c *Collector) Collect(ctx context.Context, maxCount int) (model.CycleResult, error) {
	res := model.CycleResult{ID: uuid.NewString(), StartedAt: c.now().UTC()}

	release, err := c.locker.Acquire(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			slog.Warn("cycle skipped, another cycle holds the lock", "cycle", res.ID)
			return res, ErrCycleInProgress
		}
		return c.finish(ctx, res, fmt.Errorf("acquire cycle lock: %w", err))
	}
	defer release()

	slog.Info("cycle started", "cycle", res.ID, "query", c.cfg.Query, "location", c.cfg.Location, "max", maxCount)

	fetched, err := c.fetcher.Fetch(ctx, c.cfg.Query, c.cfg.Location, maxCount)
	if err != nil {
		return c.finish(ctx, res, fmt.Errorf("fetch listings: %w", err))
	}
	res.Fetched = len(fetched.Listings)
	res.ParseFailures = fetched.ParseFailures

	existing, err := c.store.ExistingKeys(ctx)
	if err != nil {
		return c.finish(ctx, res, fmt.Errorf("load existing keys: %w", err))
	}

	type candidate struct {
		key     string
		listing model.Listing
	}
	var candidates []candidate
	seen := make(map[string]struct{}, len(fetched.Listings))
	for _, l := range fetched.Listings {
		key, err := urlutil.JobKey(l.Link)
		if err != nil {
			res.ParseFailures++
			slog.Debug("listing without usable link", "link", l.Link, "error", err)
			continue
		}
		if _, ok := existing[key]; ok {
			res.Duplicate++
			continue
		}
		if _, ok := seen[key]; ok {
			res.Duplicate++
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, candidate{key: key, listing: l})
	}

	limit := rate.Inf
	if c.cfg.RequestDelay > 0 {
		limit = rate.Every(c.cfg.RequestDelay)
	}
	pacer := rate.NewLimiter(limit, 1)

	records := make([]model.JobRecord, 0, len(candidates))
	for _, cand := range candidates {
		if err := pacer.Wait(ctx); err != nil {
			return c.finish(ctx, res, fmt.Errorf("enrich listings: %w", err))
		}
		e := c.enrich(ctx, cand.listing.Link)
		if e.Miss != "" {
			res.EnrichmentMisses++
		}
		records = append(records, model.NewRecord(cand.key, cand.listing, e))
	}

	if err := ctx.Err(); err != nil {
		return c.finish(ctx, res, fmt.Errorf("cycle cancelled: %w", err))
	}

	if len(records) > 0 {
		collectedAt := c.now().UTC().Truncate(time.Second)
		for i := range records {
			records[i].CollectedAt = collectedAt
		}
		if err := c.store.AppendAll(ctx, records); err != nil {
			return c.finish(ctx, res, fmt.Errorf("persist records: %w", err))
		}
	}
	res.New = len(records)
	res.Added = records

	return c.finish(ctx, res, nil)
}

// enrich never fails: a panicking enricher yields sentinels like an unreadable page.
func (c *Collector) enrich(ctx context.Context, link string) (e model.Enrichment) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("enricher panicked", "url", link, "panic", r)
			e = model.Enrichment{Miss: fmt.Sprintf("panic: %v", r)}.Normalize()
		}
	}()
	return c.enricher.Enrich(ctx, link).Normalize()
}

func (c *Collector) finish(ctx context.Context, res model.CycleResult, err error) (model.CycleResult, error) {
	res.FinishedAt = c.now().UTC()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		observability.IncError(observability.ClassifyFetchError(err), "collector")
	}
	observability.ObserveCycle(res)

	if nerr := c.notifier.NotifyCycle(context.WithoutCancel(ctx), res); nerr != nil {
		slog.Warn("cycle notification failed", "cycle", res.ID, "error", nerr)
	}
	return res, err
}
