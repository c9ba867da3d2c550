package root

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/fmercier/allocine-scraper/internal"
	"github.com/fmercier/allocine-scraper/internal/collector"
	"github.com/fmercier/allocine-scraper/internal/dataset"
	"github.com/fmercier/allocine-scraper/internal/reviews"
)

// defaultGenres is the genre name -> site id mapping crawled when --genre
// does not narrow the selection. Ids are the site's slugs, configuration
// rather than logic; override or extend with --genre-id.
var defaultGenres = []internal.Genre{
	{Name: "action", ID: "13025"},
	{Name: "comedie", ID: "13005"},
	{Name: "drame", ID: "13008"},
	{Name: "fantastique", ID: "13012"},
	{Name: "policier", ID: "13018"},
}

const (
	defaultCountryID  = "5002"
	defaultMaxPages   = 200
	defaultMaxReviews = 4000
)

// ErrUnknownGenre reports a --genre value with no configured id. Surfaced
// before any crawling starts.
var ErrUnknownGenre = errors.New("unknown genre")

// Option configures the root command (e.g. for tests).
type Option func(*rootConfig)

type rootConfig struct {
	collector internal.LinkCollector
	scraper   internal.ReviewScraper
}

// WithCollector sets the link collector. Use in tests to inject a collector
// backed by an httptest server instead of the default headless browser.
func WithCollector(c internal.LinkCollector) Option {
	return func(cfg *rootConfig) {
		cfg.collector = c
	}
}

// WithScraper sets the review scraper. Use in tests alongside WithCollector.
func WithScraper(s internal.ReviewScraper) Option {
	return func(cfg *rootConfig) {
		cfg.scraper = s
	}
}

// Root builds the command tree: harvest runs the two-stage ingestion
// pipeline and writes the raw dataset; prepare post-processes an exported
// dataset for analysis.
func Root(ctx context.Context, opts ...Option) *cli.Command {
	cfg := &rootConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return &cli.Command{
		Name:  "allocine-scraper",
		Usage: "collect viewer movie reviews into a Parquet dataset",
		Commands: []*cli.Command{
			harvestCommand(cfg),
			prepareCommand(),
		},
	}
}

func harvestCommand(cfg *rootConfig) *cli.Command {
	return &cli.Command{
		Name:  "harvest",
		Usage: "crawl listing pages, scrape discovered review pages, export the table",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "genre",
				Usage: "genre name to crawl (repeatable; default: all configured)",
			},
			&cli.StringSliceFlag{
				Name:  "genre-id",
				Usage: "extra or overriding genre mapping as name=id (repeatable)",
			},
			&cli.StringFlag{
				Name:    "country-id",
				Value:   defaultCountryID,
				Usage:   "country filter segment of listing URLs",
				Sources: cli.EnvVars("ALLOCINE_COUNTRY_ID"),
			},
			&cli.IntFlag{
				Name:  "max-pages",
				Value: defaultMaxPages,
				Usage: "highest listing page attempted per genre",
			},
			&cli.IntFlag{
				Name:  "max-reviews",
				Value: defaultMaxReviews,
				Usage: "upper bound on review links processed",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Value: 4,
				Usage: "parallel review-page fetches",
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "override the site base URL",
				Sources: cli.EnvVars("ALLOCINE_BASE_URL"),
			},
			&cli.StringFlag{
				Name:  "out",
				Value: "reviews.parquet",
				Usage: "output Parquet path",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			genres, err := resolveGenres(cmd.StringSlice("genre"), cmd.StringSlice("genre-id"))
			if err != nil {
				return err
			}

			coll := cfg.collector
			if coll == nil {
				var collOpts []collector.Option
				if base := cmd.String("base-url"); base != "" {
					collOpts = append(collOpts, collector.WithBaseURL(base))
				}
				coll = collector.New(collOpts...)
			}
			scraper := cfg.scraper
			if scraper == nil {
				scraper = reviews.New(reviews.WithConcurrency(int(cmd.Int("concurrency"))))
			}

			links, err := coll.CollectLinks(ctx, internal.CollectRequest{
				Genres:    genres,
				CountryID: cmd.String("country-id"),
				MaxPages:  int(cmd.Int("max-pages")),
			})
			if err != nil {
				return fmt.Errorf("collect links: %w", err)
			}
			slog.Info("harvest: links discovered", "count", len(links))

			extracted, summary, err := scraper.ScrapeReviews(ctx, links, int(cmd.Int("max-reviews")))
			if err != nil {
				return fmt.Errorf("scrape reviews: %w", err)
			}
			slog.Info("harvest: reviews scraped",
				"links_attempted", summary.LinksAttempted,
				"links_failed", summary.LinksFailed,
				"reviews", summary.Reviews,
			)

			out := cmd.String("out")
			if err := dataset.Export(dataset.FromReviews(extracted), out); err != nil {
				return err
			}
			slog.Info("harvest: dataset written", "path", out, "rows", len(extracted))
			return nil
		},
	}
}

func prepareCommand() *cli.Command {
	return &cli.Command{
		Name:  "prepare",
		Usage: "dedupe, normalize dates, and add per-genre rolling scores to an exported dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "in",
				Usage:    "raw dataset Parquet path",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "out",
				Value: "reviews_prepared.parquet",
				Usage: "treated dataset Parquet path",
			},
			&cli.StringFlag{
				Name:  "min-date",
				Value: dataset.DefaultMinDate.Format(time.DateOnly),
				Usage: "drop reviews dated before this day (YYYY-MM-DD)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			minDate, err := time.Parse(time.DateOnly, cmd.String("min-date"))
			if err != nil {
				return fmt.Errorf("invalid --min-date (expected YYYY-MM-DD): %w", err)
			}
			rows, err := dataset.Read(cmd.String("in"))
			if err != nil {
				return err
			}
			prepared := dataset.Prepare(rows, minDate)
			out := cmd.String("out")
			if err := dataset.ExportPrepared(prepared, out); err != nil {
				return err
			}
			slog.Info("prepare: dataset written", "path", out, "in_rows", len(rows), "out_rows", len(prepared))
			return nil
		},
	}
}

// resolveGenres merges --genre-id overrides into the default mapping, then
// narrows to the --genre selection. An unknown selection is fatal: crawling
// a mistyped genre for hundreds of pages helps nobody.
func resolveGenres(selected, overrides []string) ([]internal.Genre, error) {
	genres := make([]internal.Genre, len(defaultGenres))
	copy(genres, defaultGenres)
	for _, o := range overrides {
		name, id, ok := strings.Cut(o, "=")
		name = strings.TrimSpace(name)
		id = strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			return nil, fmt.Errorf("invalid --genre-id %q (expected name=id)", o)
		}
		replaced := false
		for i := range genres {
			if genres[i].Name == name {
				genres[i].ID = id
				replaced = true
				break
			}
		}
		if !replaced {
			genres = append(genres, internal.Genre{Name: name, ID: id})
		}
	}
	if len(selected) == 0 {
		return genres, nil
	}
	byName := make(map[string]internal.Genre, len(genres))
	for _, g := range genres {
		byName[g.Name] = g
	}
	out := make([]internal.Genre, 0, len(selected))
	for _, name := range selected {
		g, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGenre, name)
		}
		out = append(out, g)
	}
	return out, nil
}
