// Package config assembles the run configuration from, in increasing order of
// precedence: built-in defaults, a YAML file, a .env file and the process
// environment. Command line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/brojonat/gyards/yards"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Gallery  GalleryConfig  `yaml:"gallery"`
	Assets   AssetsConfig   `yaml:"assets"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ScrapeConfig struct {
	BaseURL           string        `yaml:"base_url"`
	StartPage         int           `yaml:"start_page"`
	EndPage           int           `yaml:"end_page"`
	Workers           int           `yaml:"workers"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Identities        []string      `yaml:"identities"`
	Output            string        `yaml:"output"`
}

type GalleryConfig struct {
	APIURL        string        `yaml:"api_url"`
	Browser       bool          `yaml:"browser"`
	ChromePath    string        `yaml:"chrome_path"`
	ShowBrowser   bool          `yaml:"show_browser"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
	ScreenshotDir string        `yaml:"screenshot_dir"`
}

type AssetsConfig struct {
	Root     string        `yaml:"root"`
	Output   string        `yaml:"output"`
	LogFile  string        `yaml:"log_file"`
	Timeout  time.Duration `yaml:"timeout"`
	S3Bucket string        `yaml:"s3_bucket"`
	S3Prefix string        `yaml:"s3_prefix"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			BaseURL:   yards.DefaultBaseURL,
			StartPage: 1,
			EndPage:   2,
			Workers:   10,
			Timeout:   yards.DefaultTimeout,
			Output:    "output/gurgaon_properties.json",
		},
		Gallery: GalleryConfig{
			WaitTimeout: 15 * time.Second,
		},
		Assets: AssetsConfig{
			Root:    "output",
			Output:  "output/gurgaon_properties_with_local_assets.json",
			LogFile: "output/download_log.txt",
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. An empty path skips the YAML file; a missing
// env file is not an error.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with
// lookup. Every malformed value is reported.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("GYARDS_BASE_URL", &c.Scrape.BaseURL)
	num("GYARDS_START_PAGE", &c.Scrape.StartPage)
	num("GYARDS_END_PAGE", &c.Scrape.EndPage)
	num("GYARDS_WORKERS", &c.Scrape.Workers)
	dur("GYARDS_TIMEOUT", &c.Scrape.Timeout)
	str("GYARDS_OUTPUT", &c.Scrape.Output)
	str("GYARDS_GALLERY_API_URL", &c.Gallery.APIURL)
	str("GYARDS_CHROME_PATH", &c.Gallery.ChromePath)
	str("GYARDS_SCREENSHOT_DIR", &c.Gallery.ScreenshotDir)
	str("GYARDS_ASSETS_ROOT", &c.Assets.Root)
	str("GYARDS_ASSETS_OUTPUT", &c.Assets.Output)
	str("GYARDS_ASSETS_LOG", &c.Assets.LogFile)
	str("GYARDS_LOG_LEVEL", &c.Log.Level)
	str("DATABASE_URL", &c.Database.URL)
	str("S3_ASSET_BUCKET", &c.Assets.S3Bucket)
	if v, ok := lookup("GYARDS_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GYARDS_RPS: %w", err))
		} else {
			c.Scrape.RequestsPerSecond = f
		}
	}
	if v, ok := lookup("GYARDS_GALLERY_BROWSER"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GYARDS_GALLERY_BROWSER: %w", err))
		} else {
			c.Gallery.Browser = b
		}
	}
	return errors.Join(errs...)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Scrape.BaseURL == "" {
		errs = append(errs, errors.New("scrape.base_url is required"))
	} else if u, err := url.Parse(c.Scrape.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("scrape.base_url is not an absolute url: %q", c.Scrape.BaseURL))
	}
	if c.Scrape.StartPage < 1 {
		errs = append(errs, fmt.Errorf("scrape.start_page must be at least 1, got %d", c.Scrape.StartPage))
	}
	if c.Scrape.EndPage < c.Scrape.StartPage {
		errs = append(errs, fmt.Errorf("scrape.end_page (%d) is before scrape.start_page (%d)", c.Scrape.EndPage, c.Scrape.StartPage))
	}
	if c.Scrape.Workers < 1 {
		errs = append(errs, fmt.Errorf("scrape.workers must be at least 1, got %d", c.Scrape.Workers))
	}
	if c.Scrape.Timeout <= 0 {
		errs = append(errs, errors.New("scrape.timeout must be positive"))
	}
	if c.Scrape.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("scrape.requests_per_second must not be negative"))
	}
	if c.Scrape.Output == "" {
		errs = append(errs, errors.New("scrape.output is required"))
	}
	if c.Assets.Root == "" {
		errs = append(errs, errors.New("assets.root is required"))
	}
	if c.Gallery.WaitTimeout <= 0 {
		errs = append(errs, errors.New("gallery.wait_timeout must be positive"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c LogConfig) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
