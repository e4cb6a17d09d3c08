// Package trendserver wires the trending collector and the delivery model
// to the run-once command and the MCP tool surface.
package trendserver

import (
	"context"
	"fmt"

	"github.com/anatolykoptev/go_trend/internal/engine"
	"github.com/anatolykoptev/go_trend/internal/engine/trending"
)

// Services holds the optional collaborators shared by every operation.
// A nil field disables that collaborator.
type Services struct {
	Ledger *trending.Ledger
	Store  *trending.Store
}

func (s *Services) sinks() []trending.Sink {
	if s == nil {
		return nil
	}
	var out []trending.Sink
	if s.Ledger != nil {
		out = append(out, s.Ledger)
	}
	if s.Store != nil {
		out = append(out, s.Store)
	}
	return out
}

// Close releases the ledger and the store.
func (s *Services) Close() {
	if s == nil {
		return
	}
	if s.Ledger != nil {
		s.Ledger.Close() //nolint:errcheck
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// Collect loads the API key (and, when countries is empty, the country list)
// from the configured files and runs one collection.
func (s *Services) Collect(ctx context.Context, countries []string) (trending.RunResult, error) {
	key, err := engine.LoadAPIKey(engine.Cfg.APIKeyFile)
	if err != nil {
		return trending.RunResult{}, err
	}
	if len(countries) == 0 {
		countries, err = engine.LoadCountryCodes(engine.Cfg.CountryCodesFile)
		if err != nil {
			return trending.RunResult{}, err
		}
	}
	c := trending.NewCollector(trending.Config{
		APIKey:    key,
		Countries: countries,
		OutputDir: engine.Cfg.OutputDir,
	}, trending.WithSinks(s.sinks()...))

	var res trending.RunResult
	err = engine.TrackOperation(ctx, "trending_collect", func(ctx context.Context) error {
		var err error
		res, err = c.Run(ctx)
		return err
	})
	return res, err
}

// Aggregate consolidates every dataset in the output directory. Empty codes
// fall back to the configured aggregate codes.
func (s *Services) Aggregate(codes []string) (*trending.Consolidation, error) {
	if len(codes) == 0 {
		codes = engine.Cfg.AggregateCodes
	}
	ds, err := trending.DirDatasets(engine.Cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return nil, fmt.Errorf("aggregate: no datasets in %s", engine.Cfg.OutputDir)
	}
	return trending.Consolidate(ds, codes, engine.Cfg.ConsolidatedDir)
}
