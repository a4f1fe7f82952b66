package media

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

type ChromeOptions struct {
	Headless bool
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

type chromeDriver struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromeFactory returns a DriverFactory that launches one headless Chrome
// per session.
func NewChromeFactory(opts ChromeOptions) DriverFactory {
	return func(ctx context.Context, userAgent string) (Driver, error) {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		if userAgent != "" {
			allocOpts = append(allocOpts, chromedp.UserAgent(userAgent))
		}
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
		d := &chromeDriver{
			ctx: browserCtx,
			cancel: func() {
				cancelBrowser()
				cancelAlloc()
			},
		}
		// The first Run starts the browser and ties its lifetime to the context
		// it is given, so it must run on the browser context itself.
		stop := context.AfterFunc(ctx, d.cancel)
		err := chromedp.Run(d.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}))
		stop()
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			d.cancel()
			return nil, err
		}
		return d, nil
	}
}

// run executes actions in the already started browser tab, bounded by the
// deadline and cancellation of the caller's ctx.
func (d *chromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	rctx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		rctx, cancelDL = context.WithDeadline(rctx, dl)
		defer cancelDL()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(rctx, actions...)
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

func (d *chromeDriver) WaitClickable(ctx context.Context, css string) error {
	return d.run(ctx, chromedp.WaitVisible(css, chromedp.ByQuery))
}

func (d *chromeDriver) Click(ctx context.Context, css string) error {
	return d.run(ctx, chromedp.Click(css, chromedp.ByQuery))
}

func (d *chromeDriver) WaitPresent(ctx context.Context, css string) error {
	return d.run(ctx, chromedp.WaitReady(css, chromedp.ByQuery))
}

func (d *chromeDriver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *chromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

func (d *chromeDriver) Close() error {
	d.cancel()
	return nil
}
