package model

import "fmt"

// LabelColumn names the label column of the fetal health table.
const LabelColumn = "fetal_health"

// NumFeatures is the number of extracted CTG features per observation.
const NumFeatures = 21

// FeatureNames lists the feature columns in datastore order.
var FeatureNames = [NumFeatures]string{
	"baseline_value",
	"accelerations",
	"fetal_movement",
	"uterine_contractions",
	"light_decelerations",
	"severe_decelerations",
	"prolongued_decelerations",
	"abnormal_short_term_variability",
	"mean_value_of_short_term_variability",
	"percentage_of_time_with_abnormal_long_term_variability",
	"mean_value_of_long_term_variability",
	"histogram_width",
	"histogram_min",
	"histogram_max",
	"histogram_number_of_peaks",
	"histogram_number_of_zeroes",
	"histogram_mode",
	"histogram_mean",
	"histogram_median",
	"histogram_variance",
	"histogram_tendency",
}

// Columns returns the feature columns followed by the label column.
func Columns() []string {
	cols := make([]string, 0, NumFeatures+1)
	cols = append(cols, FeatureNames[:]...)
	return append(cols, LabelColumn)
}

// FeatureIndex returns the position of a feature column, or -1.
func FeatureIndex(name string) int {
	for i, n := range FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Observation is one CTG case: 21 pre-extracted features plus the confirmed
// fetal health status. Label is zero for unlabeled input awaiting prediction.
type Observation struct {
	BaselineValue                                   float64 `json:"baseline_value" validate:"min=0,max=500,integral"`
	Accelerations                                   float64 `json:"accelerations" validate:"min=0,max=1"`
	FetalMovement                                   float64 `json:"fetal_movement" validate:"min=0,max=1"`
	UterineContractions                             float64 `json:"uterine_contractions" validate:"min=0,max=1"`
	LightDecelerations                              float64 `json:"light_decelerations" validate:"min=0,max=1"`
	SevereDecelerations                             float64 `json:"severe_decelerations" validate:"min=0,max=1"`
	ProlonguedDecelerations                         float64 `json:"prolongued_decelerations" validate:"min=0,max=1"`
	AbnormalShortTermVariability                    float64 `json:"abnormal_short_term_variability" validate:"min=0,max=100,integral"`
	MeanValueOfShortTermVariability                 float64 `json:"mean_value_of_short_term_variability" validate:"min=0,max=100"`
	PercentageOfTimeWithAbnormalLongTermVariability float64 `json:"percentage_of_time_with_abnormal_long_term_variability" validate:"min=0,max=100,integral"`
	MeanValueOfLongTermVariability                  float64 `json:"mean_value_of_long_term_variability" validate:"min=0,max=100"`
	HistogramWidth                                  float64 `json:"histogram_width" validate:"min=0,max=500,integral"`
	HistogramMin                                    float64 `json:"histogram_min" validate:"min=0,max=500,integral"`
	HistogramMax                                    float64 `json:"histogram_max" validate:"min=0,max=500,integral"`
	HistogramNumberOfPeaks                          float64 `json:"histogram_number_of_peaks" validate:"min=0,max=50,integral"`
	HistogramNumberOfZeroes                         float64 `json:"histogram_number_of_zeroes" validate:"min=0,max=50,integral"`
	HistogramMode                                   float64 `json:"histogram_mode" validate:"min=0,max=500,integral"`
	HistogramMean                                   float64 `json:"histogram_mean" validate:"min=0,max=500,integral"`
	HistogramMedian                                 float64 `json:"histogram_median" validate:"min=0,max=500,integral"`
	HistogramVariance                               float64 `json:"histogram_variance" validate:"min=0,max=500,integral"`
	HistogramTendency                               float64 `json:"histogram_tendency" validate:"min=-1,max=1,integral"`

	Label Label `json:"fetal_health,omitempty"`
}

// Vector returns the features in FeatureNames order.
func (o *Observation) Vector() []float64 {
	return []float64{
		o.BaselineValue,
		o.Accelerations,
		o.FetalMovement,
		o.UterineContractions,
		o.LightDecelerations,
		o.SevereDecelerations,
		o.ProlonguedDecelerations,
		o.AbnormalShortTermVariability,
		o.MeanValueOfShortTermVariability,
		o.PercentageOfTimeWithAbnormalLongTermVariability,
		o.MeanValueOfLongTermVariability,
		o.HistogramWidth,
		o.HistogramMin,
		o.HistogramMax,
		o.HistogramNumberOfPeaks,
		o.HistogramNumberOfZeroes,
		o.HistogramMode,
		o.HistogramMean,
		o.HistogramMedian,
		o.HistogramVariance,
		o.HistogramTendency,
	}
}

// Row returns the features followed by the label code, matching Columns().
func (o *Observation) Row() []float64 {
	return append(o.Vector(), float64(o.Label))
}

// ObservationFromVector builds an unlabeled observation from ordered features.
func ObservationFromVector(v []float64) (Observation, error) {
	if len(v) != NumFeatures {
		return Observation{}, fmt.Errorf("%w: got %d values, want %d", ErrInvalidVector, len(v), NumFeatures)
	}
	return Observation{
		BaselineValue:                   v[0],
		Accelerations:                   v[1],
		FetalMovement:                   v[2],
		UterineContractions:             v[3],
		LightDecelerations:              v[4],
		SevereDecelerations:             v[5],
		ProlonguedDecelerations:         v[6],
		AbnormalShortTermVariability:    v[7],
		MeanValueOfShortTermVariability: v[8],
		PercentageOfTimeWithAbnormalLongTermVariability: v[9],
		MeanValueOfLongTermVariability:                  v[10],
		HistogramWidth:                                  v[11],
		HistogramMin:                                    v[12],
		HistogramMax:                                    v[13],
		HistogramNumberOfPeaks:                          v[14],
		HistogramNumberOfZeroes:                         v[15],
		HistogramMode:                                   v[16],
		HistogramMean:                                   v[17],
		HistogramMedian:                                 v[18],
		HistogramVariance:                               v[19],
		HistogramTendency:                               v[20],
	}, nil
}

// ObservationFromRow builds a labeled observation from a Columns()-ordered row.
func ObservationFromRow(row []float64) (Observation, error) {
	if len(row) != NumFeatures+1 {
		return Observation{}, fmt.Errorf("%w: got %d values, want %d", ErrInvalidVector, len(row), NumFeatures+1)
	}
	o, err := ObservationFromVector(row[:NumFeatures])
	if err != nil {
		return Observation{}, err
	}
	o.Label, err = LabelFromFloat(row[NumFeatures])
	if err != nil {
		return Observation{}, err
	}
	return o, nil
}

// Table is a rectangular dataset: named columns and one float row per case.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// NewTable builds a Table in Columns() order from labeled observations.
func NewTable(obs []Observation) Table {
	t := Table{Columns: Columns(), Rows: make([][]float64, len(obs))}
	for i := range obs {
		t.Rows[i] = obs[i].Row()
	}
	return t
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
