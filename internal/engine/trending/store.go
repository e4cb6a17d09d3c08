package trending

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const storeTable = "trending_videos"

var storeColumns = []string{
	"run_id", "country", "video_id", "title", "published_at", "channel_id",
	"channel_title", "category_id", "trending_date", "tags", "view_count",
	"likes", "dislikes", "comment_count", "thumbnail_link",
	"comments_disabled", "ratings_disabled", "description", "collected_at",
}

// Store copies collected records into Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// ConnectStore opens a pool against databaseURL and ensures the table exists.
func ConnectStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse config: %w", err)
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+storeTable+` (
		id                BIGSERIAL PRIMARY KEY,
		run_id            TEXT NOT NULL,
		country           TEXT NOT NULL,
		video_id          TEXT NOT NULL,
		title             TEXT NOT NULL,
		published_at      TEXT NOT NULL,
		channel_id        TEXT NOT NULL,
		channel_title     TEXT NOT NULL,
		category_id       TEXT NOT NULL,
		trending_date     TEXT NOT NULL,
		tags              TEXT[] NOT NULL,
		view_count        BIGINT NOT NULL,
		likes             BIGINT NOT NULL,
		dislikes          BIGINT NOT NULL,
		comment_count     BIGINT NOT NULL,
		thumbnail_link    TEXT NOT NULL,
		comments_disabled BOOLEAN NOT NULL,
		ratings_disabled  BOOLEAN NOT NULL,
		description       TEXT NOT NULL,
		collected_at      TIMESTAMPTZ NOT NULL
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: create table: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Record implements Sink with a single COPY per dataset.
func (s *Store) Record(ctx context.Context, res CountryResult, records []VideoRecord) error {
	if len(records) == 0 {
		return nil
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{storeTable}, storeColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			return storeRow(res, records[i]), nil
		}))
	if err != nil {
		return fmt.Errorf("store: copy %s: %w", res.Country, err)
	}
	if int(n) != len(records) {
		return fmt.Errorf("store: copy %s: wrote %d of %d rows", res.Country, n, len(records))
	}
	return nil
}

// storeRow maps a record to storeColumns order.
func storeRow(res CountryResult, r VideoRecord) []any {
	collected := res.FinishedAt
	if collected.IsZero() {
		collected = time.Now()
	}
	return []any{
		res.RunID, res.Country, r.VideoID, r.Title, r.PublishedAt, r.ChannelID,
		r.ChannelTitle, r.CategoryID, r.TrendingDate, r.Tags, r.ViewCount,
		r.Likes, r.Dislikes, r.CommentCount, r.ThumbnailLink,
		r.CommentsDisabled, r.RatingsDisabled, r.Description, collected.UTC(),
	}
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }
