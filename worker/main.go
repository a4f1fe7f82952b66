package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/gyards/property"
)

// RunWorkerFunc is a general purpose entry point for running cancelable
// periodic worker functions on some interval. The first run happens
// immediately; later runs are aligned to the interval.
func RunWorkerFunc(
	ctx context.Context,
	logger *slog.Logger,
	interval time.Duration,
	f func(context.Context, *slog.Logger),
) error {
	f(ctx, logger)
	lastRun := time.Now()
	for {
		delay := time.NewTimer(lastRun.Truncate(interval).Add(interval).Sub(lastRun))
		select {
		case <-delay.C:
			f(ctx, logger)
		case <-ctx.Done():
			logger.Info("worker context cancelled, return context err")
			if !delay.Stop() {
				<-delay.C
			}
			return ctx.Err()
		}
		lastRun = time.Now()
	}
}

// Sink receives the outcome of one complete scrape.
type Sink func(ctx context.Context, l *slog.Logger, records []property.Record, sum Summary)

// MakeScrapeWorkerFunc returns a worker that scrapes pages and hands the
// result to sink.
func MakeScrapeWorkerFunc(s *Scraper, pages []int, workers int, sink Sink) func(context.Context, *slog.Logger) {
	f := func(ctx context.Context, l *slog.Logger) {
		l.Info("running scrape worker", "pages", len(pages), "workers", workers)
		records, sum := s.ScrapeAll(ctx, pages, workers)
		l.Info("scrape finished", sum.LogAttrs()...)
		sink(ctx, l, records, sum)
	}
	return f
}
