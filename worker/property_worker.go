package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/brojonat/gyards/extract"
	"github.com/brojonat/gyards/property"
	"github.com/brojonat/gyards/yards"
)

// MediaResolver is satisfied by *media.Resolver.
type MediaResolver interface {
	Resolve(ctx context.Context, propertyID, detailURL string) property.Media
}

type assemblyState int

const (
	stateTileParsed assemblyState = iota
	stateDetailFetched
	stateFieldsExtracted
	stateMediaResolved
	stateAssembled
	stateFailed
)

func (s assemblyState) String() string {
	return [...]string{"tile_parsed", "detail_fetched", "fields_extracted", "media_resolved", "assembled", "failed"}[s]
}

// Assembler turns a listing tile into a full record by visiting its detail
// page, its builder profile and its gallery.
type Assembler struct {
	logger   *slog.Logger
	fetcher  yards.Fetcher
	media    MediaResolver
	builders *builderCache
}

func NewAssembler(logger *slog.Logger, f yards.Fetcher, m MediaResolver) *Assembler {
	return &Assembler{
		logger:   logger,
		fetcher:  f,
		media:    m,
		builders: newBuilderCache(),
	}
}

// Assemble returns an error only when the detail page could not be fetched,
// in which case the tile is dropped.
func (a *Assembler) Assemble(ctx context.Context, tile property.ListingTile, pageURL string) (property.Record, error) {
	l := a.logger.With("property_id", tile.ID)
	st := stateTileParsed
	advance := func(next assemblyState) {
		l.Debug("assembly state", "from", st.String(), "to", next.String())
		st = next
	}

	detailURL := yards.ResolveURL(pageURL, tile.DetailURL)
	doc, err := a.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		advance(stateFailed)
		l.Error("error fetching detail page", "url", detailURL, "error", err.Error())
		return property.Record{}, fmt.Errorf("error fetching detail page for %s: %w", tile.ID, err)
	}
	advance(stateDetailFetched)

	rec := property.NewRecord(tile.ID)
	p := &rec.Project
	p.Name = tile.Name
	p.URL = detailURL
	p.Location = tile.Location
	p.Developer = tile.Developer
	p.Status = tile.Status
	p.Price = tile.PriceRangeText
	p.ThumbnailImage = yards.ResolveURL(pageURL, tile.ThumbnailRef)

	p.About = safeExtract(l, "about", detailURL, func() string { return extract.About(doc) })
	p.Information = safeExtract(l, "unit_configurations", detailURL, func() []property.UnitConfiguration { return extract.UnitConfigurations(doc) })
	p.Specifications = safeExtract(l, "specifications", detailURL, func() []property.Specification { return extract.Specifications(doc) })
	p.Amenities = safeExtract(l, "amenities", detailURL, func() map[string][]property.Amenity { return extract.Amenities(doc) })
	p.FloorPlans = safeExtract(l, "floor_plans", detailURL, func() map[string][]property.FloorPlan { return extract.FloorPlans(doc) })
	p.PriceList = safeExtract(l, "price_list", detailURL, func() []property.PriceRow { return extract.PriceList(doc) })
	p.PriceInsights = safeExtract(l, "price_insights", detailURL, func() property.PriceInsights { return extract.PriceInsights(doc) })
	p.NearbyLandmarks = safeExtract(l, "nearby_landmarks", detailURL, func() map[string][]property.Landmark { return extract.NearbyLandmarks(doc) })
	p.Rera = safeExtract(l, "rera", detailURL, func() property.Rera { return extract.Rera(doc) })
	p.LocationInsights = safeExtract(l, "location_insights", detailURL, func() property.LocationInsights { return extract.LocationInsights(doc) })
	rec.FAQ = safeExtract(l, "faq", detailURL, func() []property.FAQ { return extract.FAQ(doc) })

	bs := safeExtract(l, "builder_summary", detailURL, func() extract.BuilderSummary { return extract.Builder(doc) })
	b := &rec.BuilderInfo
	b.Name = bs.Name
	b.ImageURL = yards.ResolveURL(detailURL, bs.ImageURL)
	b.ProfileURL = yards.ResolveURL(detailURL, bs.ProfileURL)
	b.TotalProjects = bs.TotalProjects
	b.Experience = bs.Experience
	b.Description = bs.Description
	if b.ProfileURL != "" {
		a.mergeBuilderProfile(ctx, l, b)
	}
	advance(stateFieldsExtracted)

	if a.media != nil {
		rec.AllMedia = a.media.Resolve(ctx, tile.ID, detailURL)
	}
	advance(stateMediaResolved)

	resolveMediaURLs(&rec, detailURL)
	rec.Normalize()
	advance(stateAssembled)
	return rec, nil
}

// mergeBuilderProfile fills the builder-page fields of b. Any failure leaves
// those fields at their empty values.
func (a *Assembler) mergeBuilderProfile(ctx context.Context, l *slog.Logger, b *property.BuilderInfo) {
	bdoc, err := a.builders.get(ctx, a.fetcher, b.ProfileURL)
	if err != nil {
		l.Warn("error fetching builder page", "url", b.ProfileURL, "error", err.Error())
		return
	}
	merged := *b
	ok := safeExtract(l, "builder_profile", b.ProfileURL, func() bool {
		extract.BuilderProfile(bdoc, &merged)
		return true
	})
	if ok {
		for _, members := range merged.ManagementTeam {
			for i := range members {
				members[i].ImageURL = resolvePtr(b.ProfileURL, members[i].ImageURL)
			}
		}
		*b = merged
	}
}

// resolveMediaURLs makes the page-relative media references of rec absolute
// so the asset localizer can fetch them.
func resolveMediaURLs(rec *property.Record, pageURL string) {
	for _, amenities := range rec.Project.Amenities {
		for i := range amenities {
			amenities[i].IconURL = yards.ResolveURL(pageURL, amenities[i].IconURL)
		}
	}
	for _, plans := range rec.Project.FloorPlans {
		for i := range plans {
			plans[i].Image2DURL = yards.ResolveURL(pageURL, plans[i].Image2DURL)
			plans[i].VirtualTourURL = yards.ResolveURL(pageURL, plans[i].VirtualTourURL)
		}
	}
	for _, images := range rec.AllMedia.Images {
		for i := range images {
			images[i].Src = yards.ResolveURL(pageURL, images[i].Src)
		}
	}
	for i := range rec.AllMedia.Videos {
		rec.AllMedia.Videos[i].Src = yards.ResolveURL(pageURL, rec.AllMedia.Videos[i].Src)
	}
}

func resolvePtr(base string, ref *string) *string {
	if ref == nil {
		return nil
	}
	v := yards.ResolveURL(base, *ref)
	return &v
}

// safeExtract runs fn and returns its result. A panic inside fn is logged
// with the extractor name and the page URL, and the zero value is returned.
func safeExtract[T any](l *slog.Logger, name, url string, fn func() T) (v T) {
	defer func() {
		if r := recover(); r != nil {
			l.Error("recovered from extractor panic", "extractor", name, "url", url, "panic", fmt.Sprint(r))
			var zero T
			v = zero
		}
	}()
	return fn()
}

// builderCache fetches each builder profile page at most once per run. Many
// projects share a builder, so concurrent callers for the same URL wait on
// the first fetch.
type builderCache struct {
	mu      sync.Mutex
	entries map[string]*builderEntry
}

type builderEntry struct {
	once sync.Once
	doc  *goquery.Document
	err  error
}

func newBuilderCache() *builderCache {
	return &builderCache{entries: map[string]*builderEntry{}}
}

func (c *builderCache) get(ctx context.Context, f yards.Fetcher, url string) (*goquery.Document, error) {
	c.mu.Lock()
	e, ok := c.entries[url]
	if !ok {
		e = &builderEntry{}
		c.entries[url] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.doc, e.err = f.Fetch(ctx, url)
	})
	return e.doc, e.err
}
