package yards

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://www.squareyards.com/new-projects-in-gurgaon?page={page}"
	DefaultTimeout = 10 * time.Second

	pagePlaceholder = "{page}"
	maxBodyBytes    = 8 << 20
)

// Fetcher retrieves a URL and returns the parsed DOM. Failures are always
// reported as *FetchError and never retried at this layer.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

type Client interface {
	Fetcher

	// Gallery posts the numeric project id to the gallery endpoint and returns
	// the raw JSON payload.
	Gallery(ctx context.Context, projectID string) ([]byte, error)
}

var ErrNoGalleryAPI = errors.New("gallery api not configured")

type ClientOptions struct {
	Timeout           time.Duration
	Identities        IdentityPool
	RequestsPerSecond float64
	GalleryURL        string
	// HTTPClient replaces the default cookie-jar client, mostly for tests.
	HTTPClient *http.Client
	// Logger receives retry diagnostics from the gallery client. Anything
	// satisfying retryablehttp.LeveledLogger (like *slog.Logger) works.
	Logger retryablehttp.LeveledLogger
}

type client struct {
	hc         *http.Client
	rc         *retryablehttp.Client
	timeout    time.Duration
	identities IdentityPool
	limiter    *rate.Limiter
	galleryURL string
}

func NewClient(opts ClientOptions) (Client, error) {
	hc := opts.HTTPClient
	if hc == nil {
		var err error
		hc, err = getDefaultHTTPClient()
		if err != nil {
			return nil, err
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	identities := opts.Identities
	if identities == nil {
		identities = NewRandomPool(DefaultIdentities)
	}

	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.HTTPClient = &http.Client{Jar: hc.Jar, Transport: hc.Transport, Timeout: 6 * time.Second}
	rc.Logger = nil
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	}

	c := &client{
		hc:         hc,
		rc:         rc,
		timeout:    timeout,
		identities: identities,
		galleryURL: opts.GalleryURL,
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c, nil
}

func getDefaultHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &http.Client{Jar: jar}, nil
}

func (c *client) Fetch(ctx context.Context, u string) (*goquery.Document, error) {
	b, err := c.doRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, &FetchError{URL: u, Reason: "unparsable document", Err: err}
	}
	if parsed, perr := url.Parse(u); perr == nil {
		doc.Url = parsed
	}
	return doc, nil
}

func (c *client) doRequest(ctx context.Context, u string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: u, Reason: "rate limiter: " + err.Error(), Err: err}
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{URL: u, Reason: "bad request", Err: err}
	}
	req.Header.Set("User-Agent", c.identities.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	res, err := c.hc.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Reason: transportReason(err), Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
		return nil, &FetchError{URL: u, StatusCode: res.StatusCode, Reason: res.Status}
	}
	b, err := ioReadAllLimit(res.Body, maxBodyBytes)
	if err != nil {
		return nil, &FetchError{URL: u, Reason: transportReason(err), Err: err}
	}
	return b, nil
}

func (c *client) Gallery(ctx context.Context, projectID string) ([]byte, error) {
	if c.galleryURL == "" {
		return nil, ErrNoGalleryAPI
	}
	form := url.Values{}
	form.Set("projectId", projectID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.galleryURL, []byte(form.Encode()))
	if err != nil {
		return nil, &FetchError{URL: c.galleryURL, Reason: "bad request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", c.identities.Next())

	res, err := c.rc.Do(req)
	if err != nil {
		return nil, &FetchError{URL: c.galleryURL, Reason: transportReason(err), Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &FetchError{URL: c.galleryURL, StatusCode: res.StatusCode, Reason: res.Status}
	}
	return ioReadAllLimit(res.Body, maxBodyBytes)
}

func transportReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return err.Error()
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}

// PageURL fills the page placeholder of a search-results URL template. When the
// template has no placeholder the page number is appended.
func PageURL(template string, page int) string {
	p := strconv.Itoa(page)
	if strings.Contains(template, pagePlaceholder) {
		return strings.ReplaceAll(template, pagePlaceholder, p)
	}
	return template + p
}

// ResolveURL resolves ref against base. Absolute refs and unparsable input are
// returned as they are.
func ResolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// FetchError describes why a page could not be retrieved.
type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }
