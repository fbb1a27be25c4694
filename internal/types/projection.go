package types

// Interval is a closed interval [Lower, Upper]
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies within the interval
func (i Interval) Contains(v float64) bool {
	return v >= i.Lower && v <= i.Upper
}

// PosteriorSummary is a point estimate with an interval at significance level Alpha
type PosteriorSummary struct {
	Mean     float64  `json:"mean"`
	Interval Interval `json:"interval"`
	Alpha    float64  `json:"alpha"`
}

// ProjectionSummary is the JSON artifact written by the project command
type ProjectionSummary struct {
	CalibrationSource      string           `json:"calibration_source"`
	NumCohorts             int              `json:"num_cohorts"`
	CohortSize             int              `json:"cohort_size"`
	TimeSteps              int              `json:"time_steps"`
	DrugEffectivenessRatio float64          `json:"drug_effectiveness_ratio"`
	MeanSurvivalTime       PosteriorSummary `json:"mean_survival_time"`
	MortalityProbability   PosteriorSummary `json:"mortality_probability"`
}
