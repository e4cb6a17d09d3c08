package trendserver

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_trend/internal/engine"
	"github.com/anatolykoptev/go_trend/internal/engine/delivery"
	"github.com/anatolykoptev/go_trend/internal/engine/trending"
)

// CollectInput is the input for trending_collect.
type CollectInput struct {
	Countries []string `json:"countries,omitempty" jsonschema:"Country codes to collect (default: the configured country list)"`
}

// CollectOutput reports the countries written before the run finished or stopped.
type CollectOutput struct {
	RunID       string          `json:"run_id"`
	Countries   []CountryOutput `json:"countries"`
	RateLimited bool            `json:"rate_limited,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// CountryOutput is one written country dataset.
type CountryOutput struct {
	Country      string `json:"country"`
	Path         string `json:"path"`
	TrendingDate string `json:"trending_date"`
	Pages        int    `json:"pages"`
	Rows         int    `json:"rows"`
	FinishedAt   string `json:"finished_at"`
}

// AggregateInput is the input for trending_aggregate.
type AggregateInput struct {
	Codes []string `json:"codes,omitempty" jsonschema:"Country tokens to group by (default: US,UK,GB,DE,CA,FR,KR,RU,JP,BR,MX,IN)"`
}

// RunsInput is the input for trending_runs.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max entries to return (default 50, max 100)"`
}

// RunsOutput lists ledger entries, newest first.
type RunsOutput struct {
	Entries []trending.LedgerEntry `json:"entries"`
}

// PredictInput is the input for delivery_predict.
type PredictInput struct {
	Requests []delivery.CustomData `json:"requests" jsonschema:"Delivery requests to score"`
}

// PredictOutput holds one predicted delivery time (minutes) per request.
type PredictOutput struct {
	Predictions []float64 `json:"predictions"`
}

// RegisterTools registers trending_collect, trending_aggregate, trending_runs
// and delivery_predict.
func RegisterTools(server *mcp.Server, svc *Services) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "trending_collect",
		Description: "Collect the YouTube trending chart for each country and write one CSV per country. Stops at the first rate-limit response and reports the countries already written.",
	}, collectHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "trending_aggregate",
		Description: "Consolidate every collected CSV into Total_data.csv plus one file per country code found in the file names.",
	}, aggregateHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "trending_runs",
		Description: "List recently written country datasets from the local run ledger.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, runsHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delivery_predict",
		Description: "Predict food delivery time in minutes from rider, order, traffic and weather features.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, predictHandler())
}

func collectHandler(svc *Services) mcp.ToolHandlerFor[CollectInput, CollectOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CollectInput) (*mcp.CallToolResult, CollectOutput, error) {
		res, err := svc.Collect(ctx, input.Countries)
		out := CollectOutput{RunID: res.RunID, Countries: []CountryOutput{}}
		for _, c := range res.Countries {
			out.Countries = append(out.Countries, CountryOutput{
				Country:      c.Country,
				Path:         c.Path,
				TrendingDate: c.TrendingDate,
				Pages:        c.Pages,
				Rows:         c.Rows,
				FinishedAt:   c.FinishedAt.Format(time.RFC3339),
			})
		}
		if err != nil {
			if !errors.Is(err, engine.ErrRateLimited) {
				return nil, CollectOutput{}, err
			}
			out.RateLimited = true
			out.Error = err.Error()
		}
		return nil, out, nil
	}
}

func aggregateHandler(svc *Services) mcp.ToolHandlerFor[AggregateInput, *trending.Consolidation] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input AggregateInput) (*mcp.CallToolResult, *trending.Consolidation, error) {
		res, err := svc.Aggregate(input.Codes)
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	}
}

func runsHandler(svc *Services) mcp.ToolHandlerFor[RunsInput, RunsOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RunsInput) (*mcp.CallToolResult, RunsOutput, error) {
		if svc == nil || svc.Ledger == nil {
			return nil, RunsOutput{}, errors.New("run ledger is disabled (set LEDGER_PATH)")
		}
		entries, err := svc.Ledger.Recent(ctx, input.Limit)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		return nil, RunsOutput{Entries: entries}, nil
	}
}

func predictHandler() mcp.ToolHandlerFor[PredictInput, PredictOutput] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input PredictInput) (*mcp.CallToolResult, PredictOutput, error) {
		if len(input.Requests) == 0 {
			return nil, PredictOutput{}, errors.New("at least one request is required")
		}
		records := make([]map[string]string, len(input.Requests))
		for i, r := range input.Requests {
			records[i] = r.Record()
		}
		preds, err := delivery.PredictPipeline{ArtifactsDir: engine.Cfg.DeliveryArtifacts}.Predict(records)
		if err != nil {
			return nil, PredictOutput{}, err
		}
		return nil, PredictOutput{Predictions: preds}, nil
	}
}
