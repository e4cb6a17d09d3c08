package trending

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/anatolykoptev/go_trend/internal/engine"
)

// TotalFileName is the flat union written by Consolidate.
const TotalFileName = "Total_data.csv"

// CountryDir holds the per-country consolidated files.
const CountryDir = "list_of_data"

// Consolidation lists the files produced by Consolidate.
type Consolidation struct {
	Total     string            `json:"total"`
	TotalRows int               `json:"total_rows"`
	Countries map[string]string `json:"countries"`
	Rows      map[string]int    `json:"rows"`
}

// Consolidate writes the flat union of datasets to <dir>/Total_data.csv and
// one <dir>/list_of_data/<CODE>.csv per code that matched at least one dataset.
func Consolidate(datasets []Dataset, codes []string, dir string) (*Consolidation, error) {
	total, err := FlatUnion(datasets)
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}
	out := &Consolidation{
		Total:     filepath.Join(dir, TotalFileName),
		TotalRows: len(total.Rows),
		Countries: make(map[string]string),
		Rows:      make(map[string]int),
	}
	if err := SaveTable(out.Total, total); err != nil {
		return nil, err
	}

	groups, err := GroupByCountry(datasets, codes)
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}
	for _, code := range codes {
		t, ok := groups[code]
		if !ok {
			continue
		}
		path := filepath.Join(dir, CountryDir, code+".csv")
		if err := SaveTable(path, t); err != nil {
			return nil, err
		}
		out.Countries[code] = path
		out.Rows[code] = len(t.Rows)
	}
	engine.IncrAggregations()
	slog.Info("trending: consolidated",
		slog.Int("datasets", len(datasets)),
		slog.Int("rows", out.TotalRows),
		slog.Int("countries", len(out.Countries)),
	)
	return out, nil
}
