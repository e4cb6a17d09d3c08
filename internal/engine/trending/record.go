package trending

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_trend/internal/engine"
)

// Header is the column layout shared by every country dataset.
var Header = []string{
	"video_id", "title", "publishedAt", "channelId", "channelTitle", "categoryId",
	"trending_date", "tags", "view_count", "likes", "dislikes", "comment_count",
	"thumbnail_link", "comments_disabled", "ratings_disabled", "description",
}

// NoTags stands in for a video that carries no tags field.
const NoTags = "[none]"

// TagSeparator joins tags inside the tags column.
const TagSeparator = "|"

// VideoRecord is one trending video observation.
type VideoRecord struct {
	VideoID          string   `json:"video_id"`
	Title            string   `json:"title"`
	PublishedAt      string   `json:"published_at"`
	ChannelID        string   `json:"channel_id"`
	ChannelTitle     string   `json:"channel_title"`
	CategoryID       string   `json:"category_id"`
	TrendingDate     string   `json:"trending_date"`
	Tags             []string `json:"tags"`
	ViewCount        int64    `json:"view_count"`
	Likes            int64    `json:"likes"`
	Dislikes         int64    `json:"dislikes"`
	CommentCount     int64    `json:"comment_count"`
	ThumbnailLink    string   `json:"thumbnail_link"`
	CommentsDisabled bool     `json:"comments_disabled"`
	RatingsDisabled  bool     `json:"ratings_disabled"`
	Description      string   `json:"description"`
}

// Fields returns the raw column values in Header order.
func (r VideoRecord) Fields() []string {
	return []string{
		r.VideoID,
		r.Title,
		r.PublishedAt,
		r.ChannelID,
		r.ChannelTitle,
		r.CategoryID,
		r.TrendingDate,
		JoinTags(r.Tags),
		strconv.FormatInt(r.ViewCount, 10),
		strconv.FormatInt(r.Likes, 10),
		strconv.FormatInt(r.Dislikes, 10),
		strconv.FormatInt(r.CommentCount, 10),
		r.ThumbnailLink,
		formatBool(r.CommentsDisabled),
		formatBool(r.RatingsDisabled),
		r.Description,
	}
}

// Line serializes the record: every field sanitized, quoted and comma-joined.
func (r VideoRecord) Line() string {
	fields := r.Fields()
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = Quote(f)
	}
	return strings.Join(quoted, ",")
}

// HeaderLine is the unquoted first line of a country dataset.
func HeaderLine() string {
	return strings.Join(Header, ",")
}

var unsafeChars = strings.NewReplacer("\n", "", `"`, "")

// Sanitize strips newlines and double quotes.
func Sanitize(s string) string {
	return unsafeChars.Replace(s)
}

// Quote sanitizes s and wraps it in double quotes.
func Quote(s string) string {
	return `"` + Sanitize(s) + `"`
}

// JoinTags pipe-joins tags.
func JoinTags(tags []string) string {
	return strings.Join(tags, TagSeparator)
}

// SplitTags reverses JoinTags.
func SplitTags(s string) []string {
	return strings.Split(s, TagSeparator)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// NormalizeItem flattens one API item. ok is false when the item has no
// statistics block and must be skipped. A missing snippet is an error.
func NormalizeItem(item engine.TrendingItem, trendingDate string) (rec VideoRecord, ok bool, err error) {
	if item.Statistics == nil {
		return VideoRecord{}, false, nil
	}
	if item.Snippet == nil {
		return VideoRecord{}, false, fmt.Errorf("video %s: %w", item.ID, engine.ErrMissingSnippet)
	}
	sn, st := item.Snippet, item.Statistics

	tags := sn.Tags
	if tags == nil {
		tags = []string{NoTags}
	}
	rec = VideoRecord{
		VideoID:          item.ID,
		Title:            sn.Title,
		PublishedAt:      sn.PublishedAt,
		ChannelID:        sn.ChannelID,
		ChannelTitle:     sn.ChannelTitle,
		CategoryID:       sn.CategoryID,
		TrendingDate:     trendingDate,
		Tags:             tags,
		ViewCount:        st.ViewCount.Value(),
		Likes:            st.LikeCount.Value(),
		Dislikes:         st.DislikeCount.Value(),
		CommentCount:     st.CommentCount.Value(),
		ThumbnailLink:    sn.Thumbnails["default"].URL,
		CommentsDisabled: st.CommentCount == nil,
		Description:      sn.Description,
	}
	return rec, true, nil
}

// NormalizeItems flattens a page of items in order, returning the number of
// statistics-less items that were dropped.
func NormalizeItems(items []engine.TrendingItem, trendingDate string) ([]VideoRecord, int, error) {
	out := make([]VideoRecord, 0, len(items))
	skipped := 0
	for _, it := range items {
		rec, ok, err := NormalizeItem(it, trendingDate)
		if err != nil {
			return nil, skipped, err
		}
		if !ok {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}
