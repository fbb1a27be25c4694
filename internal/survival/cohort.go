package survival

import (
	"math"
	"math/rand/v2"
)

// simulateCohort returns the mean survival time of popSize patients who each die with
// probability p per time step. Patients alive after timeSteps are censored at timeSteps.
func simulateCohort(rng *rand.Rand, p float64, popSize, timeSteps int) float64 {
	total := 0.0
	for range popSize {
		total += float64(survivalTime(rng, p, timeSteps))
	}
	return total / float64(popSize)
}

// survivalTime draws the step (1-based) at which a patient dies, capped at timeSteps.
// The step is geometric with success probability p, drawn by inversion.
func survivalTime(rng *rand.Rand, p float64, timeSteps int) int {
	switch {
	case p <= 0:
		return timeSteps
	case p >= 1:
		return 1
	}

	// 1-Float64() lies in (0, 1], keeping the log finite.
	u := 1 - rng.Float64()
	k := math.Ceil(math.Log(u) / math.Log1p(-p))
	if k < 1 {
		k = 1
	}
	if k >= float64(timeSteps) {
		return timeSteps
	}
	return int(k)
}
