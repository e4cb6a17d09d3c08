package trending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_trend/internal/engine"
	"github.com/anatolykoptev/go_trend/internal/engine/sources"
)

// Config is the immutable input of a collection run.
type Config struct {
	APIKey    string
	Countries []string
	OutputDir string
	// Now stamps trending dates and file names. nil = time.Now.
	Now func() time.Time
}

// Sink receives every dataset after it has been written to disk.
type Sink interface {
	Record(ctx context.Context, res CountryResult, records []VideoRecord) error
}

// CountryResult describes one written country dataset.
type CountryResult struct {
	RunID        string    `json:"run_id"`
	Country      string    `json:"country"`
	Path         string    `json:"path"`
	TrendingDate string    `json:"trending_date"`
	Pages        int       `json:"pages"`
	Rows         int       `json:"rows"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// RunResult lists the countries completed by Run, in order.
type RunResult struct {
	RunID     string          `json:"run_id"`
	Countries []CountryResult `json:"countries"`
}

// Paths returns the written file paths.
func (r RunResult) Paths() []string {
	out := make([]string, len(r.Countries))
	for i, c := range r.Countries {
		out[i] = c.Path
	}
	return out
}

// Collector pages through every configured country and writes one dataset each.
type Collector struct {
	cfg    Config
	source PageSource
	writer DatasetWriter
	sinks  []Sink
	runID  string
}

// Option configures a Collector.
type Option func(*Collector)

// WithSource replaces the default YouTube fetcher.
func WithSource(src PageSource) Option {
	return func(c *Collector) { c.source = src }
}

// WithSinks adds post-write sinks (ledger, database).
func WithSinks(sinks ...Sink) Option {
	return func(c *Collector) { c.sinks = append(c.sinks, sinks...) }
}

// NewCollector builds a collector. Without WithSource it fetches from the
// YouTube Data API with cfg.APIKey, through the engine page cache.
func NewCollector(cfg Config, opts ...Option) *Collector {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Countries = append([]string(nil), cfg.Countries...)
	c := &Collector{
		cfg:    cfg,
		writer: DatasetWriter{Dir: cfg.OutputDir},
		runID:  uuid.NewString(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.source == nil {
		fetcher := sources.NewTrendingFetcher(cfg.APIKey,
			sources.WithRequestsPerSecond(engine.Cfg.RequestsPerSecond))
		c.source = &sources.CachedPages{Fetcher: fetcher, Now: cfg.Now}
	}
	return c
}

// RunID identifies this collector's run in the ledger and the database.
func (c *Collector) RunID() string { return c.runID }

// CollectCountry paginates one country and writes its dataset. Nothing is
// written when any page fails.
func (c *Collector) CollectCountry(ctx context.Context, country string) (CountryResult, error) {
	started := c.cfg.Now()
	date := engine.TrendingDate(started)
	res := CountryResult{RunID: c.runID, Country: country, TrendingDate: date, StartedAt: started}

	records, pages, err := Paginate(ctx, c.source, country, date)
	res.Pages = pages
	if err != nil {
		return res, fmt.Errorf("collect %s: %w", country, err)
	}

	path, err := c.writer.Write(country, date, Lines(records))
	if err != nil {
		return res, fmt.Errorf("collect %s: %w", country, err)
	}
	res.Path = path
	res.Rows = len(records)
	res.FinishedAt = c.cfg.Now()

	engine.AddVideosCollected(len(records))
	engine.IncrCountriesDone()
	slog.Info("trending: country written",
		slog.String("country", country),
		slog.Int("pages", pages),
		slog.Int("rows", len(records)),
		slog.String("path", path),
	)

	for _, s := range c.sinks {
		if err := s.Record(ctx, res, records); err != nil {
			slog.Warn("trending: sink failed", slog.String("country", country), slog.Any("error", err))
		}
	}
	return res, nil
}

// Run collects every configured country in order. It stops at the first
// error and returns the countries finished before it; a rate limit surfaces
// as engine.ErrRateLimited so the caller can decide to abort or resume later.
func (c *Collector) Run(ctx context.Context) (RunResult, error) {
	out := RunResult{RunID: c.runID}
	for _, raw := range c.cfg.Countries {
		country := engine.NormCountry(raw)
		if country == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := c.CollectCountry(ctx, country)
		if err != nil {
			if errors.Is(err, engine.ErrRateLimited) {
				slog.Warn("trending: rate limited, stopping run",
					slog.String("country", country),
					slog.Int("completed", len(out.Countries)))
			}
			return out, err
		}
		out.Countries = append(out.Countries, res)
	}
	return out, nil
}
