package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/anatolykoptev/go_trend/internal/engine"
	"golang.org/x/time/rate"
)

// YouTube Data API v3 mostPopular chart: one request per page, 50 items max.

const (
	ytTrendingParts      = "id,statistics,snippet"
	ytTrendingChart      = "mostPopular"
	ytTrendingMaxResults = "50"
)

// Reasons in a 403 error envelope that mean quota or rate exhaustion.
var ytRateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
}

// PageFetcher fetches one page of trending videos for a region.
type PageFetcher interface {
	FetchPage(ctx context.Context, country, pageToken string) (*engine.TrendingPage, error)
}

// TrendingFetcher calls videos.list?chart=mostPopular.
type TrendingFetcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retry   engine.RetryConfig
}

// FetcherOption configures a TrendingFetcher.
type FetcherOption func(*TrendingFetcher)

// WithBaseURL overrides the API base (tests point it at httptest servers).
func WithBaseURL(base string) FetcherOption {
	return func(f *TrendingFetcher) { f.baseURL = base }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *TrendingFetcher) { f.client = c }
}

// WithRequestsPerSecond paces requests client-side. rps <= 0 disables pacing.
func WithRequestsPerSecond(rps float64) FetcherOption {
	return func(f *TrendingFetcher) {
		if rps <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetryConfig overrides the transient-failure retry policy.
func WithRetryConfig(rc engine.RetryConfig) FetcherOption {
	return func(f *TrendingFetcher) { f.retry = rc }
}

// NewTrendingFetcher returns a fetcher using the engine's HTTP client and API base.
func NewTrendingFetcher(apiKey string, opts ...FetcherOption) *TrendingFetcher {
	f := &TrendingFetcher{
		apiKey:  apiKey,
		baseURL: engine.Cfg.YouTubeAPIBase,
		client:  engine.Cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Inf, 1),
		retry:   engine.DefaultRetryConfig,
	}
	for _, o := range opts {
		o(f)
	}
	if f.baseURL == "" {
		f.baseURL = "https://www.googleapis.com/youtube/v3"
	}
	if f.client == nil {
		f.client = http.DefaultClient
	}
	return f
}

// pageURL builds the request URL. An empty token requests the first page.
func (f *TrendingFetcher) pageURL(country, pageToken string) string {
	params := url.Values{}
	params.Set("part", ytTrendingParts)
	params.Set("chart", ytTrendingChart)
	params.Set("regionCode", country)
	params.Set("maxResults", ytTrendingMaxResults)
	params.Set("key", f.apiKey)
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	return f.baseURL + "/videos?" + params.Encode()
}

// FetchPage requests one page. Rate limiting yields *engine.RateLimitError
// and is never retried; 5xx and network failures are retried with backoff.
func (f *TrendingFetcher) FetchPage(ctx context.Context, country, pageToken string) (*engine.TrendingPage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	engine.IncrPagesFetched()

	apiURL := f.pageURL(country, pageToken)
	resp, err := engine.RetryHTTP(ctx, f.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		req.Header.Set("Accept", "application/json")
		return f.client.Do(req)
	})
	if err != nil {
		engine.IncrFetchErrors()
		return nil, fmt.Errorf("youtube trending %s: %w", country, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		engine.IncrRateLimitHits()
		return nil, &engine.RateLimitError{Country: country, StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if reason, ok := rateLimitReason(body); ok && resp.StatusCode == http.StatusForbidden {
			engine.IncrRateLimitHits()
			return nil, &engine.RateLimitError{Country: country, StatusCode: resp.StatusCode, Reason: reason}
		}
		engine.IncrFetchErrors()
		return nil, fmt.Errorf("youtube trending %s: status %d: %s", country, resp.StatusCode, engine.TruncateRunes(string(body), 512, "..."))
	}

	var page engine.TrendingPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		engine.IncrFetchErrors()
		return nil, fmt.Errorf("decode youtube trending %s: %w", country, err)
	}
	slog.Debug("youtube trending: page fetched",
		slog.String("country", country),
		slog.Int("items", len(page.Items)),
		slog.Bool("more", page.NextPageToken != ""),
	)
	return &page, nil
}

// rateLimitReason reports whether a googleapis error body names a quota/rate reason.
func rateLimitReason(body []byte) (string, bool) {
	var apiErr engine.YTAPIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return "", false
	}
	for _, e := range apiErr.Error.Errors {
		if ytRateLimitReasons[e.Reason] {
			return e.Reason, true
		}
	}
	return "", false
}

// CachedPages serves pages from the engine cache, keyed by region, token and
// trending date so a same-day re-run does not spend quota twice.
type CachedPages struct {
	Fetcher PageFetcher
	Now     func() time.Time // nil = time.Now
}

// FetchPage returns a cached page or delegates to the wrapped fetcher.
func (c *CachedPages) FetchPage(ctx context.Context, country, pageToken string) (*engine.TrendingPage, error) {
	if !engine.CacheEnabled() {
		return c.Fetcher.FetchPage(ctx, country, pageToken)
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}
	key := engine.CacheKey("trending_page", country, pageToken, engine.TrendingDate(now()))
	if page, ok := engine.CacheLoadJSON[engine.TrendingPage](ctx, key); ok {
		return &page, nil
	}
	page, err := c.Fetcher.FetchPage(ctx, country, pageToken)
	if err != nil {
		return nil, err
	}
	engine.CacheStoreJSON(ctx, key, page)
	return page, nil
}
