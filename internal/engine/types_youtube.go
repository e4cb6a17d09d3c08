package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TrendingDateLayout formats the local scrape date as two-digit year.day.month.
const TrendingDateLayout = "06.02.01"

// TrendingDate stamps t with TrendingDateLayout in t's location.
func TrendingDate(t time.Time) string {
	return t.Format(TrendingDateLayout)
}

// --- YouTube Data API v3 videos.list (chart=mostPopular) types ---

// TrendingPage is one page of the mostPopular chart.
// An empty NextPageToken marks the last page for a region.
type TrendingPage struct {
	NextPageToken string         `json:"nextPageToken,omitempty"`
	Items         []TrendingItem `json:"items"`
}

// TrendingItem is a raw video resource. Snippet and Statistics are nil
// when the API omits the block.
type TrendingItem struct {
	ID         string              `json:"id"`
	Snippet    *TrendingSnippet    `json:"snippet,omitempty"`
	Statistics *TrendingStatistics `json:"statistics,omitempty"`
}

// TrendingSnippet holds the snippet fields the collector reads.
// Tags is nil when the API omits the field.
type TrendingSnippet struct {
	PublishedAt  string               `json:"publishedAt"`
	ChannelID    string               `json:"channelId"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Thumbnails   map[string]Thumbnail `json:"thumbnails,omitempty"`
	ChannelTitle string               `json:"channelTitle"`
	Tags         []string             `json:"tags"`
	CategoryID   string               `json:"categoryId"`
}

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// TrendingStatistics counters are nil when absent from the payload.
type TrendingStatistics struct {
	ViewCount    *Count `json:"viewCount,omitempty"`
	LikeCount    *Count `json:"likeCount,omitempty"`
	DislikeCount *Count `json:"dislikeCount,omitempty"`
	CommentCount *Count `json:"commentCount,omitempty"`
}

// Count is a statistics counter. The API encodes counters as decimal strings;
// plain JSON numbers are accepted too.
type Count int64

func (c *Count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("count %s: %w", b, err)
	}
	*c = Count(n)
	return nil
}

func (c Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(c), 10))
}

// Value returns the counter or 0 when absent.
func (c *Count) Value() int64 {
	if c == nil {
		return 0
	}
	return int64(*c)
}

// YTAPIError is the error envelope of googleapis responses.
type YTAPIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
			Domain string `json:"domain"`
		} `json:"errors"`
	} `json:"error"`
}

// --- Errors ---

var (
	// ErrRateLimited reports that the API refused a request for quota or rate reasons.
	ErrRateLimited = errors.New("rate limited by remote API")
	// ErrMissingSnippet reports a video item that carries statistics but no snippet.
	ErrMissingSnippet = errors.New("video item has no snippet")
)

// RateLimitError carries the country and status of a rate-limited request.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	Country    string
	StatusCode int
	Reason     string
}

func (e *RateLimitError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("temp-banned due to excess requests (%s, status %d, %s), please wait and continue later", e.Country, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("temp-banned due to excess requests (%s, status %d), please wait and continue later", e.Country, e.StatusCode)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
