package types

// CohortSpec describes one cohort handed to the simulator
type CohortSpec struct {
	ID        int
	Parameter float64
	PopSize   int
}

// SimulationResult holds per-cohort outcomes in the order the cohorts were given
type SimulationResult struct {
	IDs          []int
	MeanOutcomes []float64
}
