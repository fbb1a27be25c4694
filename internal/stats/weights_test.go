package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_SumsToOne(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
	}{
		{"single", []float64{0.3}},
		{"equal", []float64{2, 2, 2, 2}},
		{"skewed", []float64{1e-12, 3.5, 0, 7.25, 0.001}},
		{"tiny", []float64{1e-300, 2e-300, 3e-300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, _, err := Normalize(tt.weights)
			require.NoError(t, err)
			require.Len(t, normalized, len(tt.weights))

			total := 0.0
			for _, w := range normalized {
				assert.GreaterOrEqual(t, w, 0.0)
				total += w
			}
			assert.InDelta(t, 1.0, total, 1e-9)
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	weights := []float64{1, 3}
	_, sum, err := Normalize(weights)
	require.NoError(t, err)
	assert.Equal(t, 4.0, sum)
	assert.Equal(t, []float64{1, 3}, weights)
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		want    error
	}{
		{"empty", nil, ErrEmptySample},
		{"all zero", []float64{0, 0, 0}, ErrDegenerateSum},
		{"nan", []float64{1, math.NaN()}, ErrDegenerateSum},
		{"inf", []float64{1, math.Inf(1)}, ErrDegenerateSum},
		{"negative", []float64{1, -0.5}, ErrNegativeWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, _, err := Normalize(tt.weights)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, normalized)
		})
	}
}

func TestEffectiveSampleSize(t *testing.T) {
	t.Run("equal weights give n", func(t *testing.T) {
		for _, n := range []int{1, 2, 7, 1000} {
			w := make([]float64, n)
			for i := range w {
				w[i] = 1 / float64(n)
			}
			assert.InDelta(t, float64(n), EffectiveSampleSize(w), 1e-6)
		}
	})

	t.Run("one-hot gives 1", func(t *testing.T) {
		assert.Equal(t, 1.0, EffectiveSampleSize([]float64{0, 0, 1, 0}))
	})

	t.Run("bounded by 1 and n", func(t *testing.T) {
		w, _, err := Normalize([]float64{0.1, 5, 2, 0, 0.7})
		require.NoError(t, err)
		ess := EffectiveSampleSize(w)
		assert.GreaterOrEqual(t, ess, 1.0)
		assert.LessOrEqual(t, ess, 5.0)
		assert.Less(t, ess, 5.0)
		assert.Greater(t, ess, 1.0)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, 0.0, EffectiveSampleSize(nil))
	})
}

func TestWeightedMean(t *testing.T) {
	assert.InDelta(t, 0.5, WeightedMean([]float64{0.5, 0.5}, []float64{0.2, 0.8}), 1e-12)
	assert.InDelta(t, 0.2, WeightedMean([]float64{1, 0}, []float64{0.2, 0.8}), 1e-12)
}
