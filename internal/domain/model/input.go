package model

// ObservationInput is an observation as submitted by a client. Every feature
// is a pointer so that an omitted feature is reported instead of read as zero.
type ObservationInput struct {
	BaselineValue                                   *float64 `json:"baseline_value" validate:"required,min=0,max=500,integral"`
	Accelerations                                   *float64 `json:"accelerations" validate:"required,min=0,max=1"`
	FetalMovement                                   *float64 `json:"fetal_movement" validate:"required,min=0,max=1"`
	UterineContractions                             *float64 `json:"uterine_contractions" validate:"required,min=0,max=1"`
	LightDecelerations                              *float64 `json:"light_decelerations" validate:"required,min=0,max=1"`
	SevereDecelerations                             *float64 `json:"severe_decelerations" validate:"required,min=0,max=1"`
	ProlonguedDecelerations                         *float64 `json:"prolongued_decelerations" validate:"required,min=0,max=1"`
	AbnormalShortTermVariability                    *float64 `json:"abnormal_short_term_variability" validate:"required,min=0,max=100,integral"`
	MeanValueOfShortTermVariability                 *float64 `json:"mean_value_of_short_term_variability" validate:"required,min=0,max=100"`
	PercentageOfTimeWithAbnormalLongTermVariability *float64 `json:"percentage_of_time_with_abnormal_long_term_variability" validate:"required,min=0,max=100,integral"`
	MeanValueOfLongTermVariability                  *float64 `json:"mean_value_of_long_term_variability" validate:"required,min=0,max=100"`
	HistogramWidth                                  *float64 `json:"histogram_width" validate:"required,min=0,max=500,integral"`
	HistogramMin                                    *float64 `json:"histogram_min" validate:"required,min=0,max=500,integral"`
	HistogramMax                                    *float64 `json:"histogram_max" validate:"required,min=0,max=500,integral"`
	HistogramNumberOfPeaks                          *float64 `json:"histogram_number_of_peaks" validate:"required,min=0,max=50,integral"`
	HistogramNumberOfZeroes                         *float64 `json:"histogram_number_of_zeroes" validate:"required,min=0,max=50,integral"`
	HistogramMode                                   *float64 `json:"histogram_mode" validate:"required,min=0,max=500,integral"`
	HistogramMean                                   *float64 `json:"histogram_mean" validate:"required,min=0,max=500,integral"`
	HistogramMedian                                 *float64 `json:"histogram_median" validate:"required,min=0,max=500,integral"`
	HistogramVariance                               *float64 `json:"histogram_variance" validate:"required,min=0,max=500,integral"`
	HistogramTendency                               *float64 `json:"histogram_tendency" validate:"required,min=-1,max=1,integral"`

	Label Label `json:"fetal_health,omitempty"`
}

// Observation checks that every feature is present and within range, then
// returns the observation. The label is carried over unchecked.
func (in *ObservationInput) Observation() (Observation, error) {
	if err := validateStruct(in); err != nil {
		return Observation{}, err
	}
	return Observation{
		BaselineValue:                                   *in.BaselineValue,
		Accelerations:                                   *in.Accelerations,
		FetalMovement:                                   *in.FetalMovement,
		UterineContractions:                             *in.UterineContractions,
		LightDecelerations:                              *in.LightDecelerations,
		SevereDecelerations:                             *in.SevereDecelerations,
		ProlonguedDecelerations:                         *in.ProlonguedDecelerations,
		AbnormalShortTermVariability:                    *in.AbnormalShortTermVariability,
		MeanValueOfShortTermVariability:                 *in.MeanValueOfShortTermVariability,
		PercentageOfTimeWithAbnormalLongTermVariability: *in.PercentageOfTimeWithAbnormalLongTermVariability,
		MeanValueOfLongTermVariability:                  *in.MeanValueOfLongTermVariability,
		HistogramWidth:                                  *in.HistogramWidth,
		HistogramMin:                                    *in.HistogramMin,
		HistogramMax:                                    *in.HistogramMax,
		HistogramNumberOfPeaks:                          *in.HistogramNumberOfPeaks,
		HistogramNumberOfZeroes:                         *in.HistogramNumberOfZeroes,
		HistogramMode:                                   *in.HistogramMode,
		HistogramMean:                                   *in.HistogramMean,
		HistogramMedian:                                 *in.HistogramMedian,
		HistogramVariance:                               *in.HistogramVariance,
		HistogramTendency:                               *in.HistogramTendency,
		Label:                                           in.Label,
	}, nil
}
