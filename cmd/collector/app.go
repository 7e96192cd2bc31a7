package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/baxromumarov/job-collector/internal/config"
	"github.com/baxromumarov/job-collector/internal/core"
	"github.com/baxromumarov/job-collector/internal/httpx"
	"github.com/baxromumarov/job-collector/internal/lock"
	"github.com/baxromumarov/job-collector/internal/notify"
	"github.com/baxromumarov/job-collector/internal/scraper"
	"github.com/baxromumarov/job-collector/internal/store"
)

const acceptLanguage = "en-US,en;q=0.9"

// app holds the wired collaborators shared by the commands.
type app struct {
	cfg       config.Config
	store     store.Store
	collector *core.Collector
	redis     *redis.Client
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.CSVPath, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: st}

	httpOpts := []httpx.Option{
		httpx.WithUserAgent(cfg.HTTP.UserAgent),
		httpx.WithTimeout(cfg.HTTP.RequestTimeout),
		httpx.WithAttempts(cfg.HTTP.Attempts),
		httpx.WithRobots(cfg.HTTP.RespectRobots),
		httpx.WithHeader("Accept-Language", acceptLanguage),
	}
	listings, err := scraper.NewLinkedInFetcher(httpx.NewCollyFetcher(httpOpts...), scraper.LinkedInConfig{
		SearchURL:    cfg.Search.SearchURL,
		PerPage:      cfg.Search.ResultsPerPage,
		RequestDelay: cfg.HTTP.RequestDelay,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	details := scraper.NewPageEnricher(httpx.NewPoliteClient(httpOpts...))

	opts := []core.Option{core.WithNotifier(a.notifier())}
	if cfg.Lock.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.Lock.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		opts = append(opts, core.WithLocker(lock.NewRedis(client, cfg.Lock.Key, cfg.Lock.TTL)))
		slog.Info("using redis cycle lock", "key", cfg.Lock.Key)
	}

	a.collector = core.NewCollector(listings, details, st, core.CollectorConfig{
		Query:        cfg.Search.Query,
		Location:     cfg.Search.Location,
		MaxCount:     cfg.Search.MaxJobs,
		RequestDelay: cfg.HTTP.RequestDelay,
	}, opts...)
	return a, nil
}

func (a *app) notifier() notify.Notifier {
	notifiers := notify.Multi{notify.Log{}}
	if !a.cfg.Telegram.Enabled() {
		return notifiers
	}
	tg, err := notify.NewTelegram(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID)
	if err != nil {
		slog.Warn("telegram notifications disabled", "error", err)
		return notifiers
	}
	return append(notifiers, tg)
}

func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
