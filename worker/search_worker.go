package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/brojonat/gyards/extract"
	"github.com/brojonat/gyards/property"
	"github.com/brojonat/gyards/yards"
	"golang.org/x/sync/errgroup"
)

// ErrNoData reports a run that finished without assembling a single record.
var ErrNoData = errors.New("no data scraped")

// Summary counts what happened during one run.
type Summary struct {
	PagesOK     int
	PagesFailed int
	// TilesSeen counts every tile on the fetched pages, valid or not.
	TilesSeen int
	// TilesDropped counts tiles that produced no record: missing id or name,
	// a failed detail page, or a run interrupted first.
	TilesDropped int
	Records      int
	Interrupted  bool
}

// Err returns ErrNoData when nothing was assembled.
func (s Summary) Err() error {
	if s.Records == 0 {
		return ErrNoData
	}
	return nil
}

func (s Summary) LogAttrs() []any {
	return []any{
		"pages_ok", s.PagesOK,
		"pages_failed", s.PagesFailed,
		"tiles_seen", s.TilesSeen,
		"tiles_dropped", s.TilesDropped,
		"records", s.Records,
		"interrupted", s.Interrupted,
	}
}

type Scraper struct {
	logger    *slog.Logger
	fetcher   yards.Fetcher
	assembler *Assembler
	baseURL   string
}

// NewScraper returns a Scraper for the search-results URL template baseURL
// (see yards.PageURL). m may be nil, in which case galleries stay empty.
func NewScraper(logger *slog.Logger, f yards.Fetcher, m MediaResolver, baseURL string) *Scraper {
	return &Scraper{
		logger:    logger,
		fetcher:   f,
		assembler: NewAssembler(logger, f, m),
		baseURL:   baseURL,
	}
}

// ScrapeAll scrapes pages with at most workers pages in flight. Records are
// collected in completion order. A failed page contributes nothing and never
// stops the others. Once ctx is done no new page is started and whatever was
// gathered is returned.
func (s *Scraper) ScrapeAll(ctx context.Context, pages []int, workers int) ([]property.Record, Summary) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var (
		mu      sync.Mutex
		records = []property.Record{}
		sum     Summary
	)
	var g errgroup.Group
	g.SetLimit(workers)
	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			recs, ps := s.scrapePage(ctx, page)
			mu.Lock()
			defer mu.Unlock()
			records = append(records, recs...)
			if ps.ok {
				sum.PagesOK++
			} else {
				sum.PagesFailed++
			}
			sum.TilesSeen += ps.tiles
			sum.TilesDropped += ps.dropped
			return nil
		})
	}
	_ = g.Wait()

	sum.Records = len(records)
	sum.Interrupted = ctx.Err() != nil
	return records, sum
}

type pageStats struct {
	ok      bool
	tiles   int
	dropped int
}

// scrapePage assembles the tiles of one search page serially.
func (s *Scraper) scrapePage(ctx context.Context, page int) ([]property.Record, pageStats) {
	var ps pageStats
	u := yards.PageURL(s.baseURL, page)
	l := s.logger.With("page", page)
	l.Info("scraping page", "url", u)

	doc, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		l.Error("error fetching search page", "url", u, "error", err.Error())
		return nil, ps
	}
	ps.ok = true

	tiles := extract.Tiles(doc)
	ps.tiles = extract.TileCount(doc)
	ps.dropped = ps.tiles - len(tiles)
	if len(tiles) == 0 {
		l.Warn("no listings found", "url", u, "tiles", ps.tiles)
		return nil, ps
	}

	recs := make([]property.Record, 0, len(tiles))
	for i, t := range tiles {
		if ctx.Err() != nil {
			ps.dropped += len(tiles) - i
			break
		}
		rec, err := s.assembler.Assemble(ctx, t, u)
		if err != nil {
			ps.dropped++
			continue
		}
		recs = append(recs, rec)
	}
	l.Info("found properties", "count", len(recs))
	return recs, ps
}
