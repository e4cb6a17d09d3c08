package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrUnknownCategory reports a categorical value outside the fitted categories.
var ErrUnknownCategory = errors.New("unknown category")

var missingTokens = map[string]bool{"": true, "NaN": true, "nan": true, "NA": true}

func isMissing(v string) bool { return missingTokens[strings.TrimSpace(v)] }

// NumericalColumn is median-imputed then standardized.
type NumericalColumn struct {
	Name   string  `json:"name"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// CategoricalColumn is mode-imputed, ordinal-encoded by Categories order,
// then standardized.
type CategoricalColumn struct {
	Name         string   `json:"name"`
	Categories   []string `json:"categories"`
	MostFrequent string   `json:"most_frequent"`
	Mean         float64  `json:"mean"`
	Scale        float64  `json:"scale"`
}

// Preprocessor is the fitted feature transformation. Columns not listed are
// dropped; output order is numerical then categorical.
type Preprocessor struct {
	Numerical   []NumericalColumn   `json:"numerical"`
	Categorical []CategoricalColumn `json:"categorical"`
}

// Width is the number of output features.
func (p *Preprocessor) Width() int { return len(p.Numerical) + len(p.Categorical) }

// fitPreprocessor learns imputation values and scaling from df.
func fitPreprocessor(df *frame, s *Schema) (*Preprocessor, error) {
	p := &Preprocessor{}
	for _, name := range s.Numerical {
		i, err := df.col(name)
		if err != nil {
			return nil, fmt.Errorf("fit: %w", err)
		}
		var present []float64
		for r, row := range df.rows {
			if isMissing(row[i]) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("fit %s row %d: %w", name, r+1, err)
			}
			present = append(present, v)
		}
		if len(present) == 0 {
			return nil, fmt.Errorf("fit %s: no values", name)
		}
		col := NumericalColumn{Name: name, Median: median(present)}
		imputed := make([]float64, len(df.rows))
		for r, row := range df.rows {
			v, _ := col.value(row[i])
			imputed[r] = v
		}
		col.Mean, col.Scale = meanScale(imputed)
		p.Numerical = append(p.Numerical, col)
	}

	for _, spec := range s.Categorical {
		i, err := df.col(spec.Column)
		if err != nil {
			return nil, fmt.Errorf("fit: %w", err)
		}
		col := CategoricalColumn{Name: spec.Column, Categories: slices.Clone(spec.Categories)}
		values := make([]string, len(df.rows))
		for r, row := range df.rows {
			values[r] = row[i]
		}
		mode, ok := mostFrequent(values)
		if !ok {
			return nil, fmt.Errorf("fit %s: no values", spec.Column)
		}
		col.MostFrequent = mode
		encoded := make([]float64, len(values))
		for r, v := range values {
			e, err := col.encode(v)
			if err != nil {
				return nil, fmt.Errorf("fit row %d: %w", r+1, err)
			}
			encoded[r] = e
		}
		col.Mean, col.Scale = meanScale(encoded)
		p.Categorical = append(p.Categorical, col)
	}
	return p, nil
}

func (c NumericalColumn) value(raw string) (float64, error) {
	if isMissing(raw) {
		return c.Median, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.Name, err)
	}
	return v, nil
}

func (c CategoricalColumn) encode(raw string) (float64, error) {
	v := strings.TrimSpace(raw)
	if isMissing(v) {
		v = c.MostFrequent
	}
	i := slices.Index(c.Categories, v)
	if i < 0 {
		return 0, fmt.Errorf("%s=%q: %w", c.Name, v, ErrUnknownCategory)
	}
	return float64(i), nil
}

// TransformRecord maps one record (column name to raw value) to a feature vector.
func (p *Preprocessor) TransformRecord(rec map[string]string) ([]float64, error) {
	out := make([]float64, 0, p.Width())
	for _, c := range p.Numerical {
		raw, ok := rec[c.Name]
		if !ok {
			return nil, fmt.Errorf("column %q missing", c.Name)
		}
		v, err := c.value(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, (v-c.Mean)/c.Scale)
	}
	for _, c := range p.Categorical {
		raw, ok := rec[c.Name]
		if !ok {
			return nil, fmt.Errorf("column %q missing", c.Name)
		}
		v, err := c.encode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, (v-c.Mean)/c.Scale)
	}
	return out, nil
}

// Save writes the preprocessor as JSON.
func (p *Preprocessor) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadPreprocessor reads a preprocessor saved by Save.
func LoadPreprocessor(path string) (*Preprocessor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load preprocessor: %w", err)
	}
	var p Preprocessor
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("load preprocessor: %w", err)
	}
	return &p, nil
}

// TransformResult holds the transformed matrices; the target is the last column.
type TransformResult struct {
	Train            *mat.Dense
	Test             *mat.Dense
	PreprocessorPath string
}

// Transform fits the preprocessor on the train split, transforms both splits
// and saves the preprocessor to <artifactsDir>/preprocessor.json.
func Transform(trainPath, testPath string, s *Schema, artifactsDir string) (*TransformResult, error) {
	train, err := readFrame(trainPath)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	test, err := readFrame(testPath)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	p, err := fitPreprocessor(train, s)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	trainM, err := p.matrix(train, s.Target)
	if err != nil {
		return nil, fmt.Errorf("transform train: %w", err)
	}
	testM, err := p.matrix(test, s.Target)
	if err != nil {
		return nil, fmt.Errorf("transform test: %w", err)
	}

	path := filepath.Join(artifactsDir, PreprocessorFile)
	if err := p.Save(path); err != nil {
		return nil, fmt.Errorf("transform: save preprocessor: %w", err)
	}
	r, c := trainM.Dims()
	slog.Info("delivery: transformation completed",
		slog.Int("train_rows", r), slog.Int("cols", c), slog.String("preprocessor", path))
	return &TransformResult{Train: trainM, Test: testM, PreprocessorPath: path}, nil
}

// matrix transforms every row of df and appends the target column.
func (p *Preprocessor) matrix(df *frame, target string) (*mat.Dense, error) {
	ti, err := df.col(target)
	if err != nil {
		return nil, err
	}
	if len(df.rows) == 0 {
		return nil, errors.New("no rows")
	}
	width := p.Width() + 1
	data := make([]float64, 0, len(df.rows)*width)
	for r := range df.rows {
		x, err := p.TransformRecord(df.record(r))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r+1, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(df.rows[r][ti]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d target: %w", r+1, err)
		}
		data = append(data, x...)
		data = append(data, y)
	}
	return mat.NewDense(len(df.rows), width, data), nil
}

func median(xs []float64) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mostFrequent returns the modal non-missing value; ties go to the
// lexicographically smallest.
func mostFrequent(values []string) (string, bool) {
	counts := make(map[string]int)
	for _, v := range values {
		if isMissing(v) {
			continue
		}
		counts[strings.TrimSpace(v)]++
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, bestN > 0
}

// meanScale returns the population mean and standard deviation; a constant
// column gets scale 1.
func meanScale(xs []float64) (mean, scale float64) {
	mean, variance := stat.PopMeanVariance(xs, nil)
	scale = math.Sqrt(variance)
	if scale == 0 || math.IsNaN(scale) {
		scale = 1
	}
	return mean, scale
}
