package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_trend/internal/engine"
)

const samplePageJSON = `{
	"kind": "youtube#videoListResponse",
	"nextPageToken": "CAUQAA",
	"items": [
		{
			"id": "abc123",
			"snippet": {
				"publishedAt": "2026-10-15T14:00:00Z",
				"channelId": "UC1",
				"title": "First",
				"description": "desc",
				"thumbnails": {"default": {"url": "https://i.ytimg.com/vi/abc123/default.jpg", "width": 120, "height": 90}},
				"channelTitle": "Chan",
				"tags": ["a", "b"],
				"categoryId": "10"
			},
			"statistics": {"viewCount": "1000", "likeCount": "10", "commentCount": "3"}
		},
		{
			"id": "def456",
			"snippet": {"title": "Second"},
			"statistics": {"viewCount": "5"}
		}
	]
}`

var fastRetry = engine.RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}

func newTestFetcher(srv *httptest.Server) *TrendingFetcher {
	return NewTrendingFetcher("test-key",
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRetryConfig(fastRetry),
	)
}

func TestFetchPageRequestParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("path = %q, want /videos", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"part":       "id,statistics,snippet",
			"chart":      "mostPopular",
			"regionCode": "US",
			"maxResults": "50",
			"key":        "test-key",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("param %s = %q, want %q", k, got, v)
			}
		}
		if q.Has("pageToken") {
			t.Errorf("first page must not send pageToken, got %q", q.Get("pageToken"))
		}
		w.Write([]byte(samplePageJSON))
	}))
	defer srv.Close()

	page, err := newTestFetcher(srv).FetchPage(context.Background(), "US", "")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.NextPageToken != "CAUQAA" {
		t.Errorf("NextPageToken = %q", page.NextPageToken)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(page.Items))
	}

	first := page.Items[0]
	if first.Statistics.ViewCount.Value() != 1000 || first.Statistics.CommentCount.Value() != 3 {
		t.Errorf("unexpected statistics: %+v", first.Statistics)
	}
	if first.Snippet.Thumbnails["default"].URL == "" {
		t.Error("default thumbnail url not decoded")
	}

	second := page.Items[1]
	if second.Statistics.CommentCount != nil {
		t.Error("absent commentCount should decode as nil")
	}
	if second.Snippet.Tags != nil {
		t.Error("absent tags should decode as nil")
	}
}

func TestFetchPageSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pageToken"); got != "CAUQAA" {
			t.Errorf("pageToken = %q", got)
		}
		w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	page, err := newTestFetcher(srv).FetchPage(context.Background(), "GB", "CAUQAA")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.NextPageToken != "" {
		t.Errorf("expected terminal page, got token %q", page.NextPageToken)
	}
}

func TestFetchPageTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv).FetchPage(context.Background(), "US", "")
	if !errors.Is(err, engine.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	var rl *engine.RateLimitError
	if !errors.As(err, &rl) || rl.Country != "US" || rl.StatusCode != 429 {
		t.Errorf("RateLimitError = %+v", rl)
	}
	if calls.Load() != 1 {
		t.Errorf("rate-limited request was retried: %d calls", calls.Load())
	}
}

func TestFetchPageQuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "quota", "errors": [{"reason": "quotaExceeded", "domain": "youtube.quota"}]}}`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv).FetchPage(context.Background(), "DE", "")
	var rl *engine.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want *RateLimitError", err)
	}
	if rl.Reason != "quotaExceeded" {
		t.Errorf("reason = %q", rl.Reason)
	}
}

func TestFetchPageForbiddenOther(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "errors": [{"reason": "forbidden"}]}}`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv).FetchPage(context.Background(), "US", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, engine.ErrRateLimited) {
		t.Errorf("non-quota 403 must not be a rate limit: %v", err)
	}
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	if _, err := newTestFetcher(srv).FetchPage(context.Background(), "US", ""); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchPageBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	if _, err := newTestFetcher(srv).FetchPage(context.Background(), "US", ""); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCachedPages(t *testing.T) {
	engine.InitCache("", time.Minute, 100, time.Minute)
	defer engine.InitCache("", 0, 0, 0)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(samplePageJSON))
	}))
	defer srv.Close()

	day := time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local)
	cached := &CachedPages{Fetcher: newTestFetcher(srv), Now: func() time.Time { return day }}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		page, err := cached.FetchPage(ctx, "FR", "")
		if err != nil {
			t.Fatalf("FetchPage #%d: %v", i, err)
		}
		if len(page.Items) != 2 {
			t.Fatalf("items = %d", len(page.Items))
		}
		if page.Items[1].Statistics.CommentCount != nil {
			t.Error("cache round-trip must keep absent commentCount absent")
		}
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestRateLimitReason(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"quota", `{"error":{"errors":[{"reason":"quotaExceeded"}]}}`, true},
		{"rate", `{"error":{"errors":[{"reason":"rateLimitExceeded"}]}}`, true},
		{"other", `{"error":{"errors":[{"reason":"keyInvalid"}]}}`, false},
		{"not json", `nope`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := rateLimitReason([]byte(tt.body)); got != tt.want {
				t.Errorf("rateLimitReason() = %v, want %v", got, tt.want)
			}
		})
	}
}
