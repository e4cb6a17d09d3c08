package trending

import (
	"context"
	"log/slog"

	"github.com/anatolykoptev/go_trend/internal/engine"
)

// PageSource returns one page of a region's trending chart. An empty token
// requests the first page.
type PageSource interface {
	FetchPage(ctx context.Context, country, pageToken string) (*engine.TrendingPage, error)
}

// Paginate follows continuation tokens until the source stops returning one
// and yields the normalized records in page order. pages counts fetches
// issued, including a failing one.
func Paginate(ctx context.Context, src PageSource, country, trendingDate string) (records []VideoRecord, pages int, err error) {
	token := ""
	for {
		page, err := src.FetchPage(ctx, country, token)
		pages++
		if err != nil {
			return nil, pages, err
		}
		recs, skipped, err := NormalizeItems(page.Items, trendingDate)
		if err != nil {
			return nil, pages, err
		}
		if skipped > 0 {
			engine.AddItemsSkipped(skipped)
			slog.Debug("trending: items without statistics skipped",
				slog.String("country", country), slog.Int("skipped", skipped))
		}
		records = append(records, recs...)

		if page.NextPageToken == "" {
			return records, pages, nil
		}
		token = page.NextPageToken
	}
}
