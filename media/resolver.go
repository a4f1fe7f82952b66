// Package media resolves a property's image and video gallery, first through
// the portal's gallery endpoint and then by driving a real browser through the
// lazy-loaded slider.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/brojonat/gyards/extract"
	"github.com/brojonat/gyards/property"
	"github.com/brojonat/gyards/yards"
)

const (
	DefaultWaitTimeout = 15 * time.Second
	DefaultSettleMin   = 2 * time.Second
	DefaultSettleMax   = 4 * time.Second

	triggerSelector = ".load-gallery"
	contentSelector = ".bxslider figure"
	sliderSelector  = ".bxslider"

	activateSettle    = 2 * time.Second
	screenshotTimeout = 10 * time.Second
)

// GalleryClient is satisfied by yards.Client.
type GalleryClient interface {
	Gallery(ctx context.Context, projectID string) ([]byte, error)
}

type Options struct {
	Gallery       GalleryClient
	Drivers       DriverFactory
	Identities    yards.IdentityPool
	Sleep         Sleeper
	WaitTimeout   time.Duration
	SettleMin     time.Duration
	SettleMax     time.Duration
	ScreenshotDir string
}

type Resolver struct {
	logger        *slog.Logger
	gallery       GalleryClient
	drivers       DriverFactory
	identities    yards.IdentityPool
	sleep         Sleeper
	waitTimeout   time.Duration
	settleMin     time.Duration
	settleMax     time.Duration
	screenshotDir string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewResolver(logger *slog.Logger, opts Options) *Resolver {
	r := &Resolver{
		logger:        logger,
		gallery:       opts.Gallery,
		drivers:       opts.Drivers,
		identities:    opts.Identities,
		sleep:         opts.Sleep,
		waitTimeout:   opts.WaitTimeout,
		settleMin:     opts.SettleMin,
		settleMax:     opts.SettleMax,
		screenshotDir: opts.ScreenshotDir,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if r.identities == nil {
		r.identities = yards.NewRandomPool(yards.DefaultIdentities)
	}
	if r.sleep == nil {
		r.sleep = sleepCtx
	}
	if r.waitTimeout <= 0 {
		r.waitTimeout = DefaultWaitTimeout
	}
	if r.settleMin <= 0 {
		r.settleMin = DefaultSettleMin
	}
	if r.settleMax <= 0 {
		r.settleMax = DefaultSettleMax
	}
	if r.settleMax < r.settleMin {
		r.settleMax = r.settleMin
	}
	return r
}

// Resolve returns the gallery of one property. It never fails: every problem
// is logged and degrades to an empty gallery.
func (r *Resolver) Resolve(ctx context.Context, propertyID, detailURL string) property.Media {
	if r.gallery != nil && isNumeric(propertyID) {
		m, err := r.fromAPI(ctx, propertyID)
		switch {
		case errors.Is(err, yards.ErrNoGalleryAPI):
		case err != nil:
			r.logger.Warn("gallery api failed", "property_id", propertyID, "error", err.Error())
		case !empty(m):
			return m
		}
	}
	if r.drivers != nil && detailURL != "" {
		m, err := r.interactive(ctx, propertyID, detailURL)
		if err != nil {
			r.logger.Warn("interactive gallery failed", "property_id", propertyID, "url", detailURL, "error", err.Error())
			return property.NewMedia()
		}
		return m
	}
	return property.NewMedia()
}

func (r *Resolver) fromAPI(ctx context.Context, id string) (property.Media, error) {
	b, err := r.gallery.Gallery(ctx, id)
	if err != nil {
		return property.NewMedia(), err
	}
	return parseGalleryPayload(b)
}

type state int

const (
	stateNavigate state = iota
	stateWaitForTrigger
	stateActivate
	stateWaitForContent
	stateExtract
	stateDone
)

func (s state) String() string {
	switch s {
	case stateNavigate:
		return "navigate"
	case stateWaitForTrigger:
		return "wait_for_trigger"
	case stateActivate:
		return "activate"
	case stateWaitForContent:
		return "wait_for_content"
	case stateExtract:
		return "extract"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// interactive walks navigate, wait for trigger, activate, wait for content and
// extract. Every browser call is bounded by the wait timeout; one that times
// out captures a screenshot and ends the walk.
func (r *Resolver) interactive(ctx context.Context, id, url string) (property.Media, error) {
	media := property.NewMedia()
	d, err := r.drivers(ctx, r.identities.Next())
	if err != nil {
		return media, fmt.Errorf("error starting browser: %w", err)
	}
	defer d.Close()

	for st := stateNavigate; st != stateDone; st++ {
		switch st {
		case stateNavigate:
			err = r.bounded(ctx, func(ctx context.Context) error { return d.Navigate(ctx, url) })
			if err == nil {
				err = r.sleep(ctx, r.settle())
			}
		case stateWaitForTrigger:
			err = r.bounded(ctx, func(ctx context.Context) error { return d.WaitClickable(ctx, triggerSelector) })
		case stateActivate:
			err = r.bounded(ctx, func(ctx context.Context) error { return d.Click(ctx, triggerSelector) })
			if err == nil {
				err = r.sleep(ctx, activateSettle)
			}
		case stateWaitForContent:
			err = r.bounded(ctx, func(ctx context.Context) error { return d.WaitPresent(ctx, contentSelector) })
		case stateExtract:
			err = r.bounded(ctx, func(ctx context.Context) (err error) {
				media, err = r.extract(ctx, d)
				return err
			})
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				r.screenshot(ctx, d, id, st)
			}
			return property.NewMedia(), fmt.Errorf("%s: %w", st, err)
		}
	}
	return media, nil
}

func (r *Resolver) bounded(ctx context.Context, f func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.waitTimeout)
	defer cancel()
	return f(ctx)
}

func (r *Resolver) extract(ctx context.Context, d Driver) (property.Media, error) {
	html, err := d.HTML(ctx)
	if err != nil {
		return property.NewMedia(), err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return property.NewMedia(), fmt.Errorf("error parsing rendered page: %w", err)
	}
	return extract.Gallery(doc.Find(sliderSelector)), nil
}

func (r *Resolver) screenshot(ctx context.Context, d Driver, id string, st state) {
	if r.screenshotDir == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, screenshotTimeout)
	defer cancel()
	b, err := d.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("screenshot failed", "property_id", id, "error", err.Error())
		return
	}
	if err := os.MkdirAll(r.screenshotDir, 0o755); err != nil {
		r.logger.Warn("screenshot failed", "property_id", id, "error", err.Error())
		return
	}
	path := filepath.Join(r.screenshotDir, fmt.Sprintf("timeout_%s_%s.png", id, st))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		r.logger.Warn("screenshot failed", "property_id", id, "error", err.Error())
		return
	}
	r.logger.Info("saved timeout screenshot", "property_id", id, "state", st.String(), "path", path)
}

func (r *Resolver) settle() time.Duration {
	span := r.settleMax - r.settleMin
	if span <= 0 {
		return r.settleMin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settleMin + time.Duration(r.rng.Int63n(int64(span)+1))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func empty(m property.Media) bool {
	return len(m.Images) == 0 && len(m.Videos) == 0
}
