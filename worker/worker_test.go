package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/brojonat/gyards/assets"
	"github.com/brojonat/gyards/property"
	"github.com/brojonat/gyards/yards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

const searchFixture = `<html><body>
<div class="npTile">
  <button class="npFavBtn" data-projectid="101" data-propstatus="Ready To Move"></button>
  <div class="npProjectName"><a href="/project/101"><strong>Alpha Heights</strong></a></div>
  <div class="npProjectCity">Sector 65, Gurgaon</div>
  <div class="npDeveloperLogo"><img alt="Alpha Builders"></div>
  <div class="npPriceBox">1.2 Cr - 2.4 Cr</div>
  <div class="npTileFigure"><img src="/img/101.jpg?w=300"></div>
</div>
<div class="npTile">
  <div class="npProjectName"><a href="/project/999"><strong>Ghost Towers</strong></a></div>
</div>
<div class="npTile">
  <button class="npFavBtn" data-projectid="102" data-propstatus="Under Construction"></button>
  <div class="npProjectName"><a href="/project/102"><strong>Beta Residency</strong></a></div>
  <div class="npProjectCity">Sector 70, Gurgaon</div>
  <div class="npDeveloperLogo"><img alt="Alpha Builders"></div>
  <div class="npPriceBox">90 L</div>
</div>
</body></html>`

const detailFixture = `<html><body>
<section id="aboutProject"><div class="aboutTextBox"><p>About %[1]s</p></div></section>
<section id="specifications"><table>
  <tr><th>Flooring</th><td>Tiles</td></tr>
  <tr><th>Doors</th><td>Teak</td></tr>
</table></section>
<section id="amenities">
  <div class="amenitiesCategory" data-category="Sports">
    <ul><li><span class="amenityName">Gym</span><img data-src="/icons/gym.svg?v=2"></li></ul>
  </div>
  <div class="amenitiesCategory" data-category="Kids">
    <ul><li><span class="amenityName">Creche</span><img src="/icons/creche.svg"></li></ul>
  </div>
  <div class="amenitiesCategory" data-category="Empty">
    <ul><li><span class="amenityName">Nothing</span></li></ul>
  </div>
</section>
<section id="floorPlans">
  <div class="floorPlanPanel" data-category="2 BHK">
    <div class="floorPlanCard">
      <span class="floorPlanTitle">2 BHK Apartment</span>
      <figure><img src="/fp/a.jpg"></figure>
    </div>
  </div>
</section>
<section id="aboutBuilder">
  <h2>About <a href="/builder/alpha">Alpha Builders</a></h2>
  <div class="builderLogo"><img src="/img/alpha.png?v=3"></div>
</section>
</body></html>`

const builderFixture = `<html><body>
<div class="description" id="overview"><div class="descriptionBox">Since 2001.</div></div>
<div id="contact"><div class="descriptionBox"><div class="telephoneNumber"><a>1800-11</a></div></div></div>
<section id="managementTeam">
  <div class="companyOwnersBox">
    <div class="ourTeamCard">
      <figure><img src="/img/t1.jpg"></figure>
      <div class="profileName">B. Member</div>
    </div>
  </div>
</section>
</body></html>`

type siteCounters struct {
	builder atomic.Int32
}

func newSite(t *testing.T) (*httptest.Server, *siteCounters) {
	t.Helper()
	c := &siteCounters{}
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, searchFixture)
	})
	mux.HandleFunc("/project/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/project/")
		fmt.Fprintf(w, detailFixture, id)
	})
	mux.HandleFunc("/builder/alpha", func(w http.ResponseWriter, r *http.Request) {
		c.builder.Add(1)
		fmt.Fprint(w, builderFixture)
	})
	for _, prefix := range []string{"/img/", "/icons/", "/fp/"} {
		mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "asset "+r.URL.Path)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, c
}

func newFetcher(t *testing.T) yards.Fetcher {
	t.Helper()
	c, err := yards.NewClient(yards.ClientOptions{
		Timeout:    2 * time.Second,
		Identities: yards.NewRoundRobinPool([]string{"test-agent"}),
	})
	require.NoError(t, err)
	return c
}

func TestScrapeAllThreeTilesTwoValid(t *testing.T) {
	srv, counters := newSite(t)
	s := NewScraper(discard, newFetcher(t), nil, srv.URL+"/search?page={page}")

	records, sum := s.ScrapeAll(context.Background(), []int{1}, 1)
	require.Len(t, records, 2)
	require.NoError(t, sum.Err())
	assert.Equal(t, Summary{PagesOK: 1, TilesSeen: 3, TilesDropped: 1, Records: 2}, sum)

	byID := map[string]property.Record{}
	for _, r := range records {
		byID[r.ID] = r
	}
	require.Contains(t, byID, "101")
	require.Contains(t, byID, "102")
	assert.NotContains(t, byID, "999")

	a := byID["101"]
	assert.Equal(t, "Alpha Heights", a.Project.Name)
	assert.Equal(t, srv.URL+"/project/101", a.Project.URL)
	assert.Equal(t, "Sector 65, Gurgaon", a.Project.Location)
	assert.Equal(t, "Alpha Builders", a.Project.Developer)
	assert.Equal(t, "Ready To Move", a.Project.Status)
	assert.Equal(t, "1.2 Cr - 2.4 Cr", a.Project.Price)
	assert.Equal(t, srv.URL+"/img/101.jpg", a.Project.ThumbnailImage)
	assert.Equal(t, "<p>About 101</p>", a.Project.About)
	assert.Len(t, a.Project.Specifications, 2)

	assert.Equal(t, "Alpha Builders", a.BuilderInfo.Name)
	assert.Equal(t, srv.URL+"/builder/alpha", a.BuilderInfo.ProfileURL)
	assert.Equal(t, srv.URL+"/img/alpha.png", a.BuilderInfo.ImageURL)
	assert.Equal(t, "Since 2001.", a.BuilderInfo.Description)
	require.NotNil(t, a.BuilderInfo.CustomerCareNumber)
	assert.Equal(t, "1800-11", *a.BuilderInfo.CustomerCareNumber)

	assert.Equal(t, property.NewMedia(), a.AllMedia)
	assert.Equal(t, "Under Construction", byID["102"].Project.Status)

	for _, id := range []string{"101", "102"} {
		r := byID[id]
		assert.Equal(t, "Alpha Builders", r.BuilderInfo.Name, id)
		assert.Equal(t, map[string][]property.Amenity{
			"Sports": {{Name: "Gym", IconURL: srv.URL + "/icons/gym.svg"}},
			"Kids":   {{Name: "Creche", IconURL: srv.URL + "/icons/creche.svg"}},
		}, r.Project.Amenities, id)
		require.Len(t, r.Project.FloorPlans["2 BHK"], 1, id)
		assert.Equal(t, srv.URL+"/fp/a.jpg", r.Project.FloorPlans["2 BHK"][0].Image2DURL, id)
		team := r.BuilderInfo.ManagementTeam["Owners / Team"]
		require.Len(t, team, 1, id)
		require.NotNil(t, team[0].ImageURL)
		assert.Equal(t, srv.URL+"/img/t1.jpg", *team[0].ImageURL, id)
	}

	assert.Equal(t, int32(1), counters.builder.Load(), "builder page is fetched once per run")
}

func TestScrapedRecordsLocalizeRelativeMedia(t *testing.T) {
	srv, _ := newSite(t)
	s := NewScraper(discard, newFetcher(t), nil, srv.URL+"/search?page={page}")
	records, _ := s.ScrapeAll(context.Background(), []int{1}, 1)
	require.Len(t, records, 2)

	root := t.TempDir()
	out, rep := assets.NewLocalizer(discard, root, assets.Options{}).Localize(context.Background(), records)
	assert.Empty(t, rep.Failed)
	assert.NotEmpty(t, rep.Downloaded)
	for _, r := range out {
		assert.Equal(t, "assets/"+r.ID+"/Amenities_Icon/gym.svg", r.Project.Amenities["Sports"][0].IconURL)
		assert.Equal(t, "assets/"+r.ID+"/Floor_Plan_Image/2_BHK/a.jpg", r.Project.FloorPlans["2 BHK"][0].Image2DURL)
	}
}

func TestScrapeAllFailedPageContributesNothing(t *testing.T) {
	srv, _ := newSite(t)
	s := NewScraper(discard, newFetcher(t), nil, srv.URL+"/search?page={page}")

	records, sum := s.ScrapeAll(context.Background(), []int{1, 2}, 2)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, sum.PagesOK)
	assert.Equal(t, 1, sum.PagesFailed)
}

func TestScrapeAllNoData(t *testing.T) {
	srv, _ := newSite(t)
	s := NewScraper(discard, newFetcher(t), nil, srv.URL+"/search?page={page}")

	records, sum := s.ScrapeAll(context.Background(), []int{5, 6}, 2)
	assert.Empty(t, records)
	assert.NotNil(t, records)
	assert.ErrorIs(t, sum.Err(), ErrNoData)
}

type fakeFetcher struct {
	FetchFn func(ctx context.Context, url string) (*goquery.Document, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	return f.FetchFn(ctx, url)
}

func TestScrapeAllBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := &fakeFetcher{FetchFn: func(ctx context.Context, url string) (*goquery.Document, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return goquery.NewDocumentFromReader(strings.NewReader("<html></html>"))
	}}
	s := NewScraper(discard, f, nil, "https://portal.test/search?page={page}")

	_, sum := s.ScrapeAll(context.Background(), PageRange(1, 8), 3)
	assert.Equal(t, 8, sum.PagesOK)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestScrapeAllStopsDispatchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	f := &fakeFetcher{FetchFn: func(ctx context.Context, url string) (*goquery.Document, error) {
		calls.Add(1)
		cancel()
		return nil, &yards.FetchError{URL: url, Reason: "canceled", Err: context.Canceled}
	}}
	s := NewScraper(discard, f, nil, "https://portal.test/search?page={page}")

	records, sum := s.ScrapeAll(ctx, PageRange(1, 20), 1)
	assert.Empty(t, records)
	assert.True(t, sum.Interrupted)
	assert.Equal(t, int32(1), calls.Load())
}

type recordingResolver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingResolver) Resolve(ctx context.Context, id, url string) property.Media {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id+" "+url)
	m := property.NewMedia()
	m.Videos = append(m.Videos, property.Video{Type: "video/mp4", Src: "https://vid.test/" + id + ".mp4"})
	return m
}

func TestAssemblerResolvesMedia(t *testing.T) {
	srv, _ := newSite(t)
	res := &recordingResolver{}
	a := NewAssembler(discard, newFetcher(t), res)

	rec, err := a.Assemble(context.Background(), property.ListingTile{ID: "101", Name: "Alpha", DetailURL: "/project/101"}, srv.URL+"/search?page=1")
	require.NoError(t, err)
	assert.Equal(t, []string{"101 " + srv.URL + "/project/101"}, res.calls)
	assert.Equal(t, "https://vid.test/101.mp4", rec.AllMedia.Videos[0].Src)
}

func TestAssemblerDropsTileOnDetailFailure(t *testing.T) {
	f := &fakeFetcher{FetchFn: func(ctx context.Context, url string) (*goquery.Document, error) {
		return nil, &yards.FetchError{URL: url, StatusCode: http.StatusBadGateway, Reason: "502 Bad Gateway"}
	}}
	a := NewAssembler(discard, f, nil)
	_, err := a.Assemble(context.Background(), property.ListingTile{ID: "1", Name: "x", DetailURL: "https://portal.test/p/1"}, "")
	var fe *yards.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
}

func TestAssemblerBuilderFailureKeepsSummary(t *testing.T) {
	detail := `<html><body><section id="aboutBuilder">
		<h2>About <a href="https://portal.test/builder/gone">Gone Builders</a></h2>
		<div class="builderDescription">From the summary.</div>
	</section></body></html>`
	f := &fakeFetcher{FetchFn: func(ctx context.Context, url string) (*goquery.Document, error) {
		if strings.Contains(url, "/builder/") {
			return nil, &yards.FetchError{URL: url, StatusCode: http.StatusNotFound, Reason: "404 Not Found"}
		}
		return goquery.NewDocumentFromReader(strings.NewReader(detail))
	}}
	a := NewAssembler(discard, f, nil)
	rec, err := a.Assemble(context.Background(), property.ListingTile{ID: "1", Name: "x", DetailURL: "https://portal.test/p/1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Gone Builders", rec.BuilderInfo.Name)
	assert.Equal(t, "From the summary.", rec.BuilderInfo.Description)
	assert.Nil(t, rec.BuilderInfo.HeadOfficeAddress)
	assert.Equal(t, []property.City{}, rec.BuilderInfo.OperatingCities)
}

func TestSafeExtractRecovers(t *testing.T) {
	got := safeExtract(discard, "boom", "https://portal.test/p/1", func() []property.FAQ {
		panic("unexpected markup")
	})
	assert.Nil(t, got)

	ok := safeExtract(discard, "fine", "https://portal.test/p/1", func() string { return "value" })
	assert.Equal(t, "value", ok)
}

func TestRunWorkerFunc(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs int
	err := RunWorkerFunc(ctx, discard, time.Hour, func(ctx context.Context, l *slog.Logger) {
		runs++
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, runs)
}

func TestMakeScrapeWorkerFunc(t *testing.T) {
	srv, _ := newSite(t)
	s := NewScraper(discard, newFetcher(t), nil, srv.URL+"/search?page={page}")

	var got []property.Record
	var gotSum Summary
	f := MakeScrapeWorkerFunc(s, []int{1}, 1, func(ctx context.Context, l *slog.Logger, records []property.Record, sum Summary) {
		got, gotSum = records, sum
	})
	f(context.Background(), discard)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, gotSum.Records)
}

func TestPageRange(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, PageRange(1, 3))
	assert.Equal(t, []int{4}, PageRange(4, 4))
	assert.Equal(t, []int{}, PageRange(3, 1))
}
