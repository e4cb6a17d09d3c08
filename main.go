// go_trend: YouTube trending collector and delivery-time model server.
//
// With no arguments it collects the trending chart for every configured
// country, writes one CSV per country and consolidates them.
// "serve" exposes the same operations as MCP tools; "prepare" ingests and
// transforms the delivery dataset.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_trend/internal/engine"
	"github.com/anatolykoptev/go_trend/internal/engine/delivery"
	"github.com/anatolykoptev/go_trend/internal/engine/trending"
	"github.com/anatolykoptev/go_trend/internal/trendserver"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8892")
)

func main() {
	initEngine()

	mode := "run"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	var err error
	switch mode {
	case "run":
		err = runOnce()
	case "serve":
		err = serve()
	case "prepare":
		err = prepare()
	default:
		slog.Error("unknown command", slog.String("command", mode))
		os.Exit(2)
	}
	if err != nil {
		os.Exit(1)
	}
}

func initEngine() {
	c := engine.Config{
		APIKeyFile:           env.Str("YOUTUBE_API_KEY_FILE", "data/api_key.txt"),
		CountryCodesFile:     env.Str("COUNTRY_CODES_FILE", "data/country_codes.txt"),
		OutputDir:            env.Str("OUTPUT_DIR", "output"),
		ConsolidatedDir:      env.Str("CONSOLIDATED_DIR", "data"),
		AggregateCodes:       env.List("AGGREGATE_CODES", ""),
		YouTubeAPIBase:       env.Str("YOUTUBE_API_BASE", "https://www.googleapis.com/youtube/v3"),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 15*time.Second),
		RequestsPerSecond:    env.Float("REQUESTS_PER_SECOND", 0),
		CacheTTL:             env.Duration("CACHE_TTL", 0),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		RedisURL:             env.Str("REDIS_URL", ""),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		LedgerPath:           env.Str("LEDGER_PATH", filepath.Join(os.Getenv("HOME"), ".go_trend", "ledger.db")),
		DeliverySourceCSV:    env.Str("DELIVERY_SOURCE_CSV", "notebooks/data/finalTrain.csv"),
		DeliveryArtifacts:    env.Str("DELIVERY_ARTIFACTS", "artifacts"),
		DeliverySchemaFile:   env.Str("DELIVERY_SCHEMA_FILE", ""),
	}
	c.HTTPClient = &http.Client{
		Timeout: c.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     60 * time.Second,
		},
	}
	engine.Init(c)

	engine.InitCache(c.RedisURL, c.CacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}

// openServices connects the optional ledger and Postgres sink.
func openServices(ctx context.Context) *trendserver.Services {
	svc := &trendserver.Services{}
	if p := engine.Cfg.LedgerPath; p != "" {
		l, err := trending.OpenLedger(p)
		if err != nil {
			slog.Warn("run ledger init failed", slog.Any("error", err))
		} else {
			svc.Ledger = l
		}
	}
	if u := engine.Cfg.DatabaseURL; u != "" {
		s, err := trending.ConnectStore(ctx, u)
		if err != nil {
			slog.Warn("postgres sink init failed", slog.Any("error", err))
		} else {
			svc.Store = s
			slog.Info("postgres sink initialized")
		}
	}
	return svc
}

func runOnce() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := openServices(ctx)
	defer svc.Close()

	res, err := svc.Collect(ctx, nil)
	if err != nil {
		if errors.Is(err, engine.ErrRateLimited) {
			slog.Error("temp-banned due to excess requests, please wait and continue later",
				slog.Int("completed", len(res.Countries)), slog.Any("error", err))
		} else {
			slog.Error("collection failed", slog.Any("error", err))
		}
		return err
	}
	slog.Info("collection finished", slog.String("run_id", res.RunID), slog.Int("countries", len(res.Countries)))

	cons, err := svc.Aggregate(nil)
	if err != nil {
		slog.Error("aggregation failed", slog.Any("error", err))
		return err
	}
	slog.Info("aggregation finished", slog.String("total", cons.Total), slog.Int("rows", cons.TotalRows))
	return nil
}

func serve() error {
	svc := openServices(context.Background())
	defer svc.Close()

	slog.Info("starting go_trend", slog.String("port", mcpPort))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_trend",
		Version: version,
	}, nil)

	trendserver.RegisterTools(server, svc)
	slog.Info("tools registered", slog.Int("count", 4))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_trend",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		return err
	}
	return nil
}

func prepare() error {
	schema, err := delivery.LoadSchema(engine.Cfg.DeliverySchemaFile)
	if err != nil {
		slog.Error("delivery schema", slog.Any("error", err))
		return err
	}
	trainPath, testPath, err := delivery.Ingest(delivery.IngestConfig{
		SourceCSV:    engine.Cfg.DeliverySourceCSV,
		ArtifactsDir: engine.Cfg.DeliveryArtifacts,
		Schema:       schema,
	})
	if err != nil {
		slog.Error("delivery ingestion failed", slog.Any("error", err))
		return err
	}
	res, err := delivery.Transform(trainPath, testPath, schema, engine.Cfg.DeliveryArtifacts)
	if err != nil {
		slog.Error("delivery transformation failed", slog.Any("error", err))
		return err
	}
	slog.Info("delivery artifacts ready", slog.String("preprocessor", res.PreprocessorPath))
	return nil
}
