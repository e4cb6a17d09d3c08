package delivery

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
)

// Artifact file names inside the artifacts directory.
const (
	RawFile          = "raw.csv"
	TrainFile        = "train.csv"
	TestFile         = "test.csv"
	PreprocessorFile = "preprocessor.json"
	ModelFile        = "model.json"
)

// earthRadiusKm is the mean Earth radius (IUGG).
const earthRadiusKm = 6371.0088

// Haversine returns the great-circle distance in km between two lat/lon points in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	p1, p2 := lat1*rad, lat2*rad
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// IngestConfig locates the source dataset and the artifacts directory.
type IngestConfig struct {
	SourceCSV    string
	ArtifactsDir string
	Schema       *Schema
}

// Ingest derives the displacement column, drops identifier, coordinate and
// timestamp columns, writes raw.csv and a seeded train/test split. It returns
// the train and test paths.
func Ingest(cfg IngestConfig) (trainPath, testPath string, err error) {
	slog.Info("delivery: ingestion started", slog.String("source", cfg.SourceCSV))
	df, err := readFrame(cfg.SourceCSV)
	if err != nil {
		return "", "", fmt.Errorf("ingest: %w", err)
	}
	if err := addDisplacement(df, cfg.Schema.Displacement); err != nil {
		return "", "", fmt.Errorf("ingest: %w", err)
	}
	if err := df.drop(cfg.Schema.Drop...); err != nil {
		return "", "", fmt.Errorf("ingest: %w", err)
	}

	rawPath := filepath.Join(cfg.ArtifactsDir, RawFile)
	if err := df.write(rawPath); err != nil {
		return "", "", fmt.Errorf("ingest: write raw: %w", err)
	}

	train, test := splitPositions(len(df.rows), cfg.Schema.Split)
	trainPath = filepath.Join(cfg.ArtifactsDir, TrainFile)
	testPath = filepath.Join(cfg.ArtifactsDir, TestFile)
	if err := df.subset(train).write(trainPath); err != nil {
		return "", "", fmt.Errorf("ingest: write train: %w", err)
	}
	if err := df.subset(test).write(testPath); err != nil {
		return "", "", fmt.Errorf("ingest: write test: %w", err)
	}
	slog.Info("delivery: ingestion completed",
		slog.Int("rows", len(df.rows)),
		slog.Int("train", len(train)),
		slog.Int("test", len(test)),
	)
	return trainPath, testPath, nil
}

func addDisplacement(df *frame, spec DisplacementSpec) error {
	cols := make([]int, 4)
	for k, name := range []string{spec.FromLat, spec.FromLon, spec.ToLat, spec.ToLon} {
		i, err := df.col(name)
		if err != nil {
			return fmt.Errorf("displacement: %w", err)
		}
		cols[k] = i
	}
	vals := make([]string, len(df.rows))
	for r, row := range df.rows {
		var c [4]float64
		for k, i := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return fmt.Errorf("displacement: row %d column %s: %w", r+1, df.header[i], err)
			}
			c[k] = v
		}
		vals[r] = strconv.FormatFloat(Haversine(c[0], c[1], c[2], c[3]), 'f', -1, 64)
	}
	df.appendColumn(spec.Column, vals)
	return nil
}

// splitPositions shuffles 0..n-1 with the configured seed and returns the
// train and test positions. The test share is rounded up.
func splitPositions(n int, spec SplitSpec) (train, test []int) {
	nTest := int(math.Ceil(float64(n) * spec.TestFraction))
	perm := rand.New(rand.NewPCG(spec.Seed, spec.Seed)).Perm(n)
	return perm[nTest:], perm[:nTest]
}
