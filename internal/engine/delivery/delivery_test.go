package delivery

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourceHeader = "ID,Delivery_person_ID,Delivery_person_Age,Delivery_person_Ratings," +
	"Restaurant_latitude,Restaurant_longitude,Delivery_location_latitude,Delivery_location_longitude," +
	"Order_Date,Time_Orderd,Time_Order_picked,Weather_conditions,Road_traffic_density,Vehicle_condition," +
	"Type_of_order,Type_of_vehicle,multiple_deliveries,Festival,City,Time_taken (min)"

var sourceRows = []string{
	"0x1,P1,30,4.5,22.745049,75.892471,22.765049,75.912471,19-03-2022,11:30,11:45,Sunny,High,2,Snack,motorcycle,0,No,Urban,24",
	"0x2,P2,,4.9,12.913041,77.683237,13.043041,77.813237,25-03-2022,19:45,19:50,Stormy,Jam,2,Meal,scooter,1,No,Metropolitian,33",
	"0x3,P3,26,NaN,12.914264,77.678400,12.924264,77.688400,19-03-2022,08:30,08:45,Sandstorms,Low,0,Drinks,motorcycle,1,No,Urban,26",
	"0x4,P4,38,4.7,11.003669,76.976494,11.053669,77.026494,05-04-2022,18:00,18:10,Cloudy,Medium,0,Buffet,electric_scooter,1,Yes,Metropolitian,21",
	"0x5,P5,32,4.6,12.972793,80.249982,13.012793,80.289982,26-03-2022,13:35,13:40,Fog,Jam,1,Snack,motorcycle,1,No,,30",
	"0x6,P6,22,4.8,17.431668,78.408321,17.461668,78.438321,11-03-2022,21:20,21:30,Windy,Jam,1,Meal,bicycle,1,No,Semi-Urban,40",
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finalTrain.csv")
	body := sourceHeader + "\n" + strings.Join(sourceRows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestLoadSchemaEmbedded(t *testing.T) {
	s, err := LoadSchema("")
	require.NoError(t, err)
	assert.Equal(t, "Time_taken (min)", s.Target)
	assert.Equal(t, uint64(42), s.Split.Seed)
	assert.InDelta(t, 0.30, s.Split.TestFraction, 1e-9)
	assert.Equal(t, []string{
		"Delivery_person_Age", "Delivery_person_Ratings", "Displacement",
		"Weather_conditions", "Road_traffic_density", "Type_of_order",
		"Type_of_vehicle", "Festival", "City",
	}, s.FeatureColumns())
	assert.Equal(t, []string{"No", "Yes"}, s.Categorical[4].Categories)
}

func TestLoadSchemaInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("numerical: [a]\nsplit: {test_fraction: 0.3}\n"), 0o644))
	_, err := LoadSchema(path)
	assert.Error(t, err)
}

func TestHaversine(t *testing.T) {
	assert.InDelta(t, 0, Haversine(10, 10, 10, 10), 1e-12)
	// One degree of latitude along a meridian.
	assert.InDelta(t, 111.195, Haversine(0, 0, 1, 0), 0.01)
	// Symmetric.
	assert.InDelta(t, Haversine(22.7, 75.8, 22.9, 76.0), Haversine(22.9, 76.0, 22.7, 75.8), 1e-12)
}

func TestSplitPositionsDeterministic(t *testing.T) {
	spec := SplitSpec{TestFraction: 0.3, Seed: 42}
	tr1, te1 := splitPositions(10, spec)
	tr2, te2 := splitPositions(10, spec)
	assert.Equal(t, tr1, tr2)
	assert.Equal(t, te1, te2)
	assert.Len(t, te1, 3)
	assert.Len(t, tr1, 7)

	seen := map[int]bool{}
	for _, p := range append(append([]int{}, tr1...), te1...) {
		assert.False(t, seen[p], "position %d repeated", p)
		seen[p] = true
	}
	assert.Len(t, seen, 10)
}

func TestIngest(t *testing.T) {
	schema, err := LoadSchema("")
	require.NoError(t, err)
	artifacts := filepath.Join(t.TempDir(), "artifacts")

	trainPath, testPath, err := Ingest(IngestConfig{SourceCSV: writeSource(t), ArtifactsDir: artifacts, Schema: schema})
	require.NoError(t, err)

	raw := readCSV(t, filepath.Join(artifacts, RawFile))
	header := raw[0]
	assert.NotContains(t, header, "ID")
	assert.NotContains(t, header, "Restaurant_latitude")
	assert.NotContains(t, header, "Time_Orderd")
	assert.Equal(t, "Displacement", header[len(header)-1])
	assert.Len(t, raw, len(sourceRows)+1)

	d := raw[1][len(header)-1]
	assert.NotEmpty(t, d)

	train := readCSV(t, trainPath)
	test := readCSV(t, testPath)
	assert.Len(t, test, 2+1)
	assert.Len(t, train, 4+1)
	assert.Equal(t, header, train[0])
}

func TestIngestMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))
	schema, err := LoadSchema("")
	require.NoError(t, err)
	_, _, err = Ingest(IngestConfig{SourceCSV: path, ArtifactsDir: t.TempDir(), Schema: schema})
	assert.Error(t, err)
}

func TestTransformAndPredict(t *testing.T) {
	schema, err := LoadSchema("")
	require.NoError(t, err)
	artifacts := t.TempDir()
	trainPath, testPath, err := Ingest(IngestConfig{SourceCSV: writeSource(t), ArtifactsDir: artifacts, Schema: schema})
	require.NoError(t, err)

	res, err := Transform(trainPath, testPath, schema, artifacts)
	require.NoError(t, err)

	rows, cols := res.Train.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 10, cols)
	testRows, _ := res.Test.Dims()
	assert.Equal(t, 2, testRows)

	// Standardized training features have zero mean.
	for j := 0; j < cols-1; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += res.Train.At(i, j)
		}
		assert.InDelta(t, 0, sum/float64(rows), 1e-9, "column %d", j)
	}
	assert.FileExists(t, res.PreprocessorPath)

	pre, err := LoadPreprocessor(res.PreprocessorPath)
	require.NoError(t, err)
	coef := make([]float64, pre.Width())
	coef[0] = 1
	model := LinearModel{Intercept: 25, Coefficients: coef}
	require.NoError(t, writeJSON(filepath.Join(artifacts, ModelFile), model))

	req := CustomData{
		DeliveryPersonAge: pre.Numerical[0].Mean, DeliveryPersonRatings: 4.5,
		WeatherConditions: "Sunny", RoadTrafficDensity: "Jam", VehicleCondition: 2,
		TypeOfOrder: "Snack", TypeOfVehicle: "motorcycle", MultipleDeliveries: 1,
		Festival: "No", City: "Urban", Displacement: 3.1,
	}
	preds, err := PredictPipeline{ArtifactsDir: artifacts}.Predict([]map[string]string{req.Record()})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.InDelta(t, 25, preds[0], 1e-9)
}

func TestPreprocessorUnknownCategory(t *testing.T) {
	p := &Preprocessor{Categorical: []CategoricalColumn{{
		Name: "City", Categories: []string{"Urban", "Metropolitian"}, MostFrequent: "Urban", Scale: 1,
	}}}
	_, err := p.TransformRecord(map[string]string{"City": "Atlantis"})
	assert.True(t, errors.Is(err, ErrUnknownCategory))

	x, err := p.TransformRecord(map[string]string{"City": "NaN"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, x)
}

func TestPreprocessorMissingColumn(t *testing.T) {
	p := &Preprocessor{Numerical: []NumericalColumn{{Name: "Age", Scale: 1}}}
	_, err := p.TransformRecord(map[string]string{})
	assert.Error(t, err)
}

func TestFitImputation(t *testing.T) {
	df := newFrame([]string{"n", "c"}, [][]string{
		{"1", "b"}, {"", "a"}, {"3", "b"}, {"10", ""}, {"NA", "a"},
	})
	s := &Schema{
		Numerical:   []string{"n"},
		Categorical: []CategoricalSpec{{Column: "c", Categories: []string{"a", "b"}}},
	}
	p, err := fitPreprocessor(df, s)
	require.NoError(t, err)
	assert.Equal(t, 3.0, p.Numerical[0].Median)
	// a and b tie on count; the smaller value wins.
	assert.Equal(t, "a", p.Categorical[0].MostFrequent)

	// Imputed column: 1,3,3,10,3 -> mean 4.
	assert.InDelta(t, 4, p.Numerical[0].Mean, 1e-12)
}

func TestMeanScaleConstant(t *testing.T) {
	m, s := meanScale([]float64{2, 2, 2})
	assert.Equal(t, 2.0, m)
	assert.Equal(t, 1.0, s)
}

func TestMedianEven(t *testing.T) {
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}

func TestLinearModelWidthMismatch(t *testing.T) {
	_, err := (&LinearModel{Coefficients: []float64{1, 2}}).Predict([]float64{1})
	assert.Error(t, err)
}

func TestPredictMissingArtifacts(t *testing.T) {
	_, err := PredictPipeline{ArtifactsDir: t.TempDir()}.Predict(nil)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCustomDataRecord(t *testing.T) {
	rec := CustomData{DeliveryPersonAge: 30, VehicleCondition: 2, Displacement: math.Pi}.Record()
	assert.Len(t, rec, 11)
	assert.Equal(t, "30", rec["Delivery_person_Age"])
	assert.Equal(t, "2", rec["Vehicle_condition"])
}
