package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/brojonat/gyards/assets"
	"github.com/brojonat/gyards/config"
	"github.com/brojonat/gyards/media"
	"github.com/brojonat/gyards/property"
	"github.com/brojonat/gyards/store"
	"github.com/brojonat/gyards/worker"
	"github.com/brojonat/gyards/yards"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

const (
	exitNoData     = 2
	persistTimeout = time.Minute
)

// setup loads the configuration, lets set flags override it and returns a
// logger tagged with a fresh run id.
func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, nil, err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(c.App.Writer, &slog.HandlerOptions{Level: level}))
	return cfg, logger.With("run_id", uuid.NewString()), nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	setString(c, "log-level", &cfg.Log.Level)

	setString(c, "base-url", &cfg.Scrape.BaseURL)
	setInt(c, "start-page", &cfg.Scrape.StartPage)
	setInt(c, "end-page", &cfg.Scrape.EndPage)
	setInt(c, "workers", &cfg.Scrape.Workers)
	if c.IsSet("timeout") {
		cfg.Scrape.Timeout = c.Duration("timeout")
	}
	if c.IsSet("rps") {
		cfg.Scrape.RequestsPerSecond = c.Float64("rps")
	}
	setString(c, "output", &cfg.Scrape.Output)

	setString(c, "gallery-api-url", &cfg.Gallery.APIURL)
	setBool(c, "browser", &cfg.Gallery.Browser)
	setString(c, "chrome-path", &cfg.Gallery.ChromePath)
	setBool(c, "show-browser", &cfg.Gallery.ShowBrowser)
	setString(c, "screenshot-dir", &cfg.Gallery.ScreenshotDir)

	setString(c, "assets-root", &cfg.Assets.Root)
	setString(c, "assets-output", &cfg.Assets.Output)
	setString(c, "log-file", &cfg.Assets.LogFile)
	setString(c, "s3-bucket", &cfg.Assets.S3Bucket)
	setString(c, "s3-prefix", &cfg.Assets.S3Prefix)

	setString(c, "database-url", &cfg.Database.URL)
}

func setString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func setInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func setBool(c *cli.Context, name string, dst *bool) {
	if c.IsSet(name) {
		*dst = c.Bool(name)
	}
}

func newScraper(logger *slog.Logger, cfg *config.Config) (*worker.Scraper, error) {
	ids := cfg.Scrape.Identities
	if len(ids) == 0 {
		ids = yards.DefaultIdentities
	}
	pool := yards.NewRandomPool(ids)
	client, err := yards.NewClient(yards.ClientOptions{
		Timeout:           cfg.Scrape.Timeout,
		Identities:        pool,
		RequestsPerSecond: cfg.Scrape.RequestsPerSecond,
		GalleryURL:        cfg.Gallery.APIURL,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating client: %w", err)
	}
	opts := media.Options{
		Gallery:       client,
		Identities:    pool,
		WaitTimeout:   cfg.Gallery.WaitTimeout,
		ScreenshotDir: cfg.Gallery.ScreenshotDir,
	}
	if cfg.Gallery.Browser {
		opts.Drivers = media.NewChromeFactory(media.ChromeOptions{
			Headless: !cfg.Gallery.ShowBrowser,
			ExecPath: cfg.Gallery.ChromePath,
		})
	}
	return worker.NewScraper(logger, client, media.NewResolver(logger, opts), cfg.Scrape.BaseURL), nil
}

// writeScrape saves one scrape's records. An empty result is reported as
// ErrNoData and nothing is written.
func writeScrape(l *slog.Logger, cfg *config.Config, records []property.Record, sum worker.Summary) error {
	if err := sum.Err(); err != nil {
		l.Error("no data scraped, nothing written", sum.LogAttrs()...)
		return err
	}
	if err := property.WriteFile(cfg.Scrape.Output, records); err != nil {
		l.Error("error writing output", "path", cfg.Scrape.Output, "error", err.Error())
		return fmt.Errorf("error writing %s: %w", cfg.Scrape.Output, err)
	}
	l.Info("wrote output", "path", cfg.Scrape.Output, "records", len(records))
	return nil
}

func scrape(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newScraper(logger, cfg)
	if err != nil {
		return err
	}
	var runErr error
	sink := func(ctx context.Context, l *slog.Logger, records []property.Record, sum worker.Summary) {
		runErr = writeScrape(l, cfg, records, sum)
		if runErr == nil && c.Bool("persist") {
			runErr = persistRecords(ctx, l, cfg.Database.URL, records)
		}
	}
	f := worker.MakeScrapeWorkerFunc(s, worker.PageRange(cfg.Scrape.StartPage, cfg.Scrape.EndPage), cfg.Scrape.Workers, sink)

	if interval := c.Duration("interval"); interval > 0 {
		err := worker.RunWorkerFunc(ctx, logger, interval, f)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	f(ctx, logger)
	return exitErr(runErr)
}

func localize(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := c.String("input")
	if input == "" {
		input = cfg.Scrape.Output
	}
	records, err := property.ReadFile(input)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", input, err)
	}
	return localizeRecords(ctx, logger, cfg, records)
}

func scrapeAndLocalize(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newScraper(logger, cfg)
	if err != nil {
		return err
	}
	records, sum := s.ScrapeAll(ctx, worker.PageRange(cfg.Scrape.StartPage, cfg.Scrape.EndPage), cfg.Scrape.Workers)
	logger.Info("scrape finished", sum.LogAttrs()...)
	if err := writeScrape(logger, cfg, records, sum); err != nil {
		return exitErr(err)
	}
	if sum.Interrupted {
		logger.Warn("scrape interrupted, skipping localization")
		return nil
	}
	return localizeRecords(ctx, logger, cfg, records)
}

func localizeRecords(ctx context.Context, l *slog.Logger, cfg *config.Config, records []property.Record) error {
	opts := assets.Options{Timeout: cfg.Assets.Timeout}
	if cfg.Assets.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("error loading aws config: %w", err)
		}
		opts.Mirror = assets.NewS3Mirror(s3.NewFromConfig(awsCfg), cfg.Assets.S3Bucket, cfg.Assets.S3Prefix)
	}
	out, rep := assets.NewLocalizer(l, cfg.Assets.Root, opts).Localize(ctx, records)
	l.Info("localization finished", rep.LogAttrs()...)

	if err := property.WriteFile(cfg.Assets.Output, out); err != nil {
		return fmt.Errorf("error writing %s: %w", cfg.Assets.Output, err)
	}
	if err := rep.WriteLogFile(cfg.Assets.LogFile); err != nil {
		return err
	}
	l.Info("wrote localized output", "path", cfg.Assets.Output, "log", cfg.Assets.LogFile)
	return nil
}

func persist(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	input := c.String("input")
	if input == "" {
		input = cfg.Scrape.Output
	}
	records, err := property.ReadFile(input)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", input, err)
	}
	return persistRecords(c.Context, logger, cfg.Database.URL, records)
}

// persistRecords survives cancellation of ctx so an interrupted scrape still
// lands in the database.
func persistRecords(ctx context.Context, l *slog.Logger, url string, records []property.Record) error {
	if url == "" {
		return errors.New("database url not set")
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	pool, err := store.GetConnPool(ctx, url)
	if err != nil {
		return err
	}
	defer pool.Close()

	s := store.New(l, pool)
	if err := s.RunMigrations(ctx); err != nil {
		return err
	}
	n, err := s.UpsertRecords(ctx, records)
	l.Info("persisted records", "rows", n, "records", len(records))
	return err
}

// exitErr maps ErrNoData to its own exit code so it can be told apart from a
// crash.
func exitErr(err error) error {
	if errors.Is(err, worker.ErrNoData) {
		return cli.Exit(err.Error(), exitNoData)
	}
	return err
}
