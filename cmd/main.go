package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "gyards",
		Usage: "Scrape new-project listings and mirror their media locally.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   os.Getenv("GYARDS_CONFIG"),
				Usage:   "Path to a YAML config file.",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "Dotenv file loaded before the environment is read.",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "One of debug, info, warn, error.",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "scrape",
				Usage: "Scrape the search pages and write the JSON dataset.",
				Flags: append(scrapeFlags(),
					&cli.DurationFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Repeat the scrape on this interval until interrupted.",
					},
					&cli.BoolFlag{
						Name:  "persist",
						Usage: "Also upsert the records into Postgres.",
					},
					&cli.StringFlag{
						Name:    "database-url",
						Aliases: []string{"db", "d"},
						Usage:   "Postgres connection string (default $DATABASE_URL).",
					},
				),
				Action: func(ctx *cli.Context) error {
					return scrape(ctx)
				},
			},
			{
				Name:  "localize",
				Usage: "Download the media of a scraped dataset and rewrite it to local paths.",
				Flags: append(localizeFlags(),
					&cli.StringFlag{
						Name:  "input",
						Usage: "Dataset to localize (default: the scrape output).",
					},
				),
				Action: func(ctx *cli.Context) error {
					return localize(ctx)
				},
			},
			{
				Name:  "run",
				Usage: "Scrape, then localize the result.",
				Flags: append(scrapeFlags(), localizeFlags()...),
				Action: func(ctx *cli.Context) error {
					return scrapeAndLocalize(ctx)
				},
			},
			{
				Name:  "persist",
				Usage: "Upsert a scraped dataset into Postgres.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "input",
						Usage: "Dataset to persist (default: the scrape output).",
					},
					&cli.StringFlag{
						Name:    "database-url",
						Aliases: []string{"db", "d"},
						Usage:   "Postgres connection string (default $DATABASE_URL).",
					},
				},
				Action: func(ctx *cli.Context) error {
					return persist(ctx)
				},
			},
		},
	}
}

func scrapeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "base-url",
			Aliases: []string{"u"},
			Usage:   "Search URL template; {page} is replaced by the page number.",
		},
		&cli.IntFlag{
			Name:  "start-page",
			Usage: "First search page, inclusive.",
		},
		&cli.IntFlag{
			Name:  "end-page",
			Usage: "Last search page, inclusive.",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Maximum number of pages scraped at once.",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request timeout.",
		},
		&cli.Float64Flag{
			Name:  "rps",
			Usage: "Request rate limit across all workers; 0 disables it.",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Where the JSON dataset is written.",
		},
		&cli.StringFlag{
			Name:  "gallery-api-url",
			Usage: "Gallery endpoint queried with the numeric project id.",
		},
		&cli.BoolFlag{
			Name:  "browser",
			Usage: "Fall back to a headless Chrome when the gallery endpoint has nothing.",
		},
		&cli.StringFlag{
			Name:  "chrome-path",
			Usage: "Chrome executable; found on PATH when empty.",
		},
		&cli.BoolFlag{
			Name:  "show-browser",
			Usage: "Run Chrome with a visible window.",
		},
		&cli.StringFlag{
			Name:  "screenshot-dir",
			Usage: "Where browser timeouts leave a screenshot.",
		},
	}
}

func localizeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "assets-root",
			Usage: "Directory the assets/ tree is created under.",
		},
		&cli.StringFlag{
			Name:  "assets-output",
			Usage: "Where the localized JSON dataset is written.",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Where the download log is written.",
		},
		&cli.StringFlag{
			Name:  "s3-bucket",
			Usage: "Also upload every asset to this bucket (default $S3_ASSET_BUCKET).",
		},
		&cli.StringFlag{
			Name:  "s3-prefix",
			Usage: "Key prefix for uploaded assets.",
		},
	}
}
