package projection

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResample_DegenerateWeights(t *testing.T) {
	for _, n := range []int{1, 10, 1000, 20000} {
		indices, err := Resample([]float64{1, 0, 0, 0}, n, rand.NewPCG(1, 2))
		require.NoError(t, err)
		require.Len(t, indices, n)
		for _, idx := range indices {
			require.Equal(t, 0, idx)
		}
	}
}

func TestResample_ZeroWeightNeverDrawn(t *testing.T) {
	indices, err := Resample([]float64{0, 0.5, 0, 0.5, 0}, 50000, rand.NewPCG(4, 4))
	require.NoError(t, err)
	for _, idx := range indices {
		assert.Contains(t, []int{1, 3}, idx)
	}
}

func TestResample_MatchesWeights(t *testing.T) {
	const n = 100000
	indices, err := Resample([]float64{0.5, 0.5}, n, rand.NewPCG(1, 1))
	require.NoError(t, err)

	counts := make([]int, 2)
	for _, idx := range indices {
		counts[idx]++
	}
	assert.InDelta(t, 0.5, float64(counts[0])/n, 0.01)
	assert.InDelta(t, 0.5, float64(counts[1])/n, 0.01)
}

func TestResample_UnevenWeights(t *testing.T) {
	const n = 100000
	weights := []float64{0.1, 0.6, 0.3}
	indices, err := Resample(weights, n, rand.NewPCG(9, 3))
	require.NoError(t, err)

	counts := make([]int, len(weights))
	for _, idx := range indices {
		counts[idx]++
	}
	for i, w := range weights {
		assert.InDelta(t, w, float64(counts[i])/n, 0.01, "index %d", i)
	}
}

func TestResample_Deterministic(t *testing.T) {
	weights := []float64{0.2, 0.3, 0.5}
	a, err := Resample(weights, 100, rand.NewPCG(5, 5))
	require.NoError(t, err)
	b, err := Resample(weights, 100, rand.NewPCG(5, 5))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResample_InvalidInput(t *testing.T) {
	_, err := Resample([]float64{1}, 0, rand.NewPCG(1, 1))
	var reqErr *InvalidRequestError
	assert.ErrorAs(t, err, &reqErr)

	_, err = Resample([]float64{0, 0}, 5, rand.NewPCG(1, 1))
	assert.Error(t, err)

	_, err = Resample(nil, 5, rand.NewPCG(1, 1))
	assert.Error(t, err)
}
