package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/anatolykoptev/go_trend/internal/engine"
)

// LinearModel is an externally trained linear regressor.
type LinearModel struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Predict returns intercept + coefficients·x.
func (m *LinearModel) Predict(x []float64) (float64, error) {
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("model expects %d features, got %d", len(m.Coefficients), len(x))
	}
	return m.Intercept + floats.Dot(m.Coefficients, x), nil
}

// LoadModel reads a LinearModel from JSON.
func LoadModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &m, nil
}

// CustomData is a single prediction request.
type CustomData struct {
	DeliveryPersonAge     float64 `json:"Delivery_person_Age"`
	DeliveryPersonRatings float64 `json:"Delivery_person_Ratings"`
	WeatherConditions     string  `json:"Weather_conditions"`
	RoadTrafficDensity    string  `json:"Road_traffic_density"`
	VehicleCondition      int     `json:"Vehicle_condition"`
	TypeOfOrder           string  `json:"Type_of_order"`
	TypeOfVehicle         string  `json:"Type_of_vehicle"`
	MultipleDeliveries    float64 `json:"multiple_deliveries"`
	Festival              string  `json:"Festival"`
	City                  string  `json:"City"`
	Displacement          float64 `json:"Displacement"`
}

// Record keys the request by dataset column name.
func (d CustomData) Record() map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		"Delivery_person_Age":     f(d.DeliveryPersonAge),
		"Delivery_person_Ratings": f(d.DeliveryPersonRatings),
		"Weather_conditions":      d.WeatherConditions,
		"Road_traffic_density":    d.RoadTrafficDensity,
		"Vehicle_condition":       strconv.Itoa(d.VehicleCondition),
		"Type_of_order":           d.TypeOfOrder,
		"Type_of_vehicle":         d.TypeOfVehicle,
		"multiple_deliveries":     f(d.MultipleDeliveries),
		"Festival":                d.Festival,
		"City":                    d.City,
		"Displacement":            f(d.Displacement),
	}
}

// PredictPipeline loads the saved preprocessor and model from ArtifactsDir on
// every call, so retraining takes effect without a restart.
type PredictPipeline struct {
	ArtifactsDir string
}

// Predict transforms each record and returns one prediction per record.
func (p PredictPipeline) Predict(records []map[string]string) ([]float64, error) {
	pre, err := LoadPreprocessor(filepath.Join(p.ArtifactsDir, PreprocessorFile))
	if err != nil {
		return nil, err
	}
	model, err := LoadModel(filepath.Join(p.ArtifactsDir, ModelFile))
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(records))
	for i, rec := range records {
		x, err := pre.TransformRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("predict record %d: %w", i, err)
		}
		y, err := model.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("predict record %d: %w", i, err)
		}
		out[i] = y
	}
	engine.IncrDeliveryPredicts()
	return out, nil
}
