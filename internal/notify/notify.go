package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/baxromumarov/job-collector/internal/model"
)

// Notifier receives the summary of every finished cycle.
type Notifier interface {
	NotifyCycle(ctx context.Context, res model.CycleResult) error
}

// Log writes cycle summaries to the default slog logger.
type Log struct{}

func (Log) NotifyCycle(_ context.Context, res model.CycleResult) error {
	if res.Failed() {
		slog.Error("cycle failed",
			"cycle", res.ID,
			"error", res.Err,
			"duration", res.FinishedAt.Sub(res.StartedAt).String(),
		)
		return nil
	}
	slog.Info("cycle complete",
		"cycle", res.ID,
		"fetched", res.Fetched,
		"new", res.New,
		"duplicate", res.Duplicate,
		"enrichment_misses", res.EnrichmentMisses,
		"parse_failures", res.ParseFailures,
		"duration", res.FinishedAt.Sub(res.StartedAt).String(),
	)
	return nil
}

// Multi fans a summary out to several notifiers and joins their errors.
type Multi []Notifier

func (m Multi) NotifyCycle(ctx context.Context, res model.CycleResult) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyCycle(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
