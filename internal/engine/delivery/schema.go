// Package delivery prepares the food-delivery dataset and serves
// delivery-time predictions from an externally trained linear model.
package delivery

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var defaultSchema []byte

// Schema names the columns the pipeline reads, derives, drops and encodes.
type Schema struct {
	Displacement DisplacementSpec  `yaml:"displacement"`
	Drop         []string          `yaml:"drop"`
	Split        SplitSpec         `yaml:"split"`
	Target       string            `yaml:"target"`
	Numerical    []string          `yaml:"numerical"`
	Categorical  []CategoricalSpec `yaml:"categorical"`
}

// DisplacementSpec derives Column as the great-circle distance in km
// between two coordinate pairs.
type DisplacementSpec struct {
	Column  string `yaml:"column"`
	FromLat string `yaml:"from_lat"`
	FromLon string `yaml:"from_lon"`
	ToLat   string `yaml:"to_lat"`
	ToLon   string `yaml:"to_lon"`
}

type SplitSpec struct {
	TestFraction float64 `yaml:"test_fraction"`
	Seed         uint64  `yaml:"seed"`
}

// CategoricalSpec fixes the ordinal order of a column's categories.
type CategoricalSpec struct {
	Column     string   `yaml:"column"`
	Categories []string `yaml:"categories"`
}

// LoadSchema reads a YAML schema from path, or the embedded default when
// path is empty.
func LoadSchema(path string) (*Schema, error) {
	data := defaultSchema
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("delivery schema: %w", err)
		}
		data = b
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("delivery schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("delivery schema: %w", err)
	}
	return &s, nil
}

func (s *Schema) validate() error {
	if s.Target == "" {
		return errors.New("target column is required")
	}
	if len(s.Numerical) == 0 && len(s.Categorical) == 0 {
		return errors.New("no feature columns")
	}
	if s.Split.TestFraction <= 0 || s.Split.TestFraction >= 1 {
		return fmt.Errorf("split.test_fraction %v out of (0, 1)", s.Split.TestFraction)
	}
	for _, c := range s.Categorical {
		if len(c.Categories) == 0 {
			return fmt.Errorf("categorical %s: no categories", c.Column)
		}
	}
	return nil
}

// FeatureColumns lists the model inputs in output order: numerical first.
func (s *Schema) FeatureColumns() []string {
	out := make([]string, 0, len(s.Numerical)+len(s.Categorical))
	out = append(out, s.Numerical...)
	for _, c := range s.Categorical {
		out = append(out, c.Column)
	}
	return out
}
