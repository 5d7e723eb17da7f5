package sampling_test

import (
	"math"
	"testing"

	"uqflow/internal/sampling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDistribution(t *testing.T) {
	tests := []struct {
		expr string
		want sampling.Distribution
	}{
		{"Uniform(0.025, 0.075)", sampling.Uniform{Low: 0.025, High: 0.075}},
		{"Uniform(15, 25)", sampling.Uniform{Low: 15, High: 25}},
		{"Normal(20, 2)", sampling.Normal{Mu: 20, Sigma: 2}},
		{"Normal(-1.5, 0.5)", sampling.Normal{Mu: -1.5, Sigma: 0.5}},
	}

	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			dist, err := sampling.ParseDistribution(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, dist)
		})
	}

	invalid := []string{
		"Uniform(1)",
		"Uniform(2, 1)",
		"Normal(0, -1)",
		"Exponential(1)",
		"Uniform 1 2",
		"",
	}
	for _, expr := range invalid {
		t.Run("Invalid/"+expr, func(t *testing.T) {
			_, err := sampling.ParseDistribution(expr)
			assert.Error(t, err)
		})
	}
}

func TestParseVary(t *testing.T) {
	vary, err := sampling.ParseVary(map[string]string{
		"kappa": "Uniform(0.025, 0.075)",
		"t_env": "Uniform(15, 25)",
	})
	require.NoError(t, err)
	assert.Equal(t, sampling.Uniform{Low: 0.025, High: 0.075}, vary["kappa"])
	assert.Equal(t, sampling.Uniform{Low: 15, High: 25}, vary["t_env"])

	_, err = sampling.ParseVary(map[string]string{"kappa": "Wat(1)"})
	assert.Error(t, err)
}

func TestUniformGaussPoints(t *testing.T) {
	u := sampling.Uniform{Low: 15, High: 25}
	nodes, weights := u.GaussPoints(4)
	require.Len(t, nodes, 4)
	require.Len(t, weights, 4)

	var wsum, mean, second float64
	for i := range nodes {
		assert.Greater(t, nodes[i], 15.0)
		assert.Less(t, nodes[i], 25.0)
		wsum += weights[i]
		mean += weights[i] * nodes[i]
		second += weights[i] * nodes[i] * nodes[i]
	}
	assert.InDelta(t, 1.0, wsum, 1e-12)
	assert.InDelta(t, 20.0, mean, 1e-9)
	// E[X^2] of U(15,25) is (25^3-15^3)/(3*10).
	assert.InDelta(t, (25.0*25*25-15.0*15*15)/30.0, second, 1e-9)
}

func TestNormalGaussPoints(t *testing.T) {
	n := sampling.Normal{Mu: 20, Sigma: 2}
	nodes, weights := n.GaussPoints(5)

	var wsum, mean, variance float64
	for i := range nodes {
		wsum += weights[i]
		mean += weights[i] * nodes[i]
	}
	for i := range nodes {
		variance += weights[i] * (nodes[i] - mean) * (nodes[i] - mean)
	}
	assert.InDelta(t, 1.0, wsum, 1e-12)
	assert.InDelta(t, 20.0, mean, 1e-9)
	assert.InDelta(t, 4.0, variance, 1e-9)
}

func TestQuantiles(t *testing.T) {
	u := sampling.Uniform{Low: 0, High: 10}
	assert.InDelta(t, 1.0, u.Quantile(0.1), 1e-12)
	assert.InDelta(t, 9.0, u.Quantile(0.9), 1e-12)

	n := sampling.Normal{Mu: 0, Sigma: 1}
	assert.InDelta(t, 0.0, n.Quantile(0.5), 1e-12)
	assert.InDelta(t, 1.2815515655446004, n.Quantile(0.9), 1e-9)
}

func TestPCESampler(t *testing.T) {
	vary := map[string]sampling.Distribution{
		"kappa": sampling.Uniform{Low: 0.025, High: 0.075},
		"t_env": sampling.Uniform{Low: 15, High: 25},
	}

	s, err := sampling.NewPCESampler(vary, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"kappa", "t_env"}, s.Names())
	assert.Equal(t, 16, s.Size())
	require.Len(t, s.Points(), 16)

	// Last name varies fastest: the first four points share a kappa node.
	first := s.Points()[0]["kappa"].(float64)
	for _, point := range s.Points()[:4] {
		assert.Equal(t, first, point["kappa"])
	}
	assert.NotEqual(t, first, s.Points()[4]["kappa"])

	// Product weights form a probability measure.
	var wsum float64
	for i := 0; i < s.Size(); i++ {
		wsum += s.Weight(i)
	}
	assert.InDelta(t, 1.0, wsum, 1e-12)

	t.Run("MultiIndexRoundTrip", func(t *testing.T) {
		assert.Equal(t, []int{0, 0}, s.MultiIndex(0))
		assert.Equal(t, []int{0, 3}, s.MultiIndex(3))
		assert.Equal(t, []int{1, 0}, s.MultiIndex(4))
		assert.Equal(t, []int{3, 3}, s.MultiIndex(15))
	})

	t.Run("RejectsEmptyVary", func(t *testing.T) {
		_, err := sampling.NewPCESampler(nil, 3)
		assert.Error(t, err)
	})

	t.Run("RejectsZeroOrder", func(t *testing.T) {
		_, err := sampling.NewPCESampler(vary, 0)
		assert.Error(t, err)
	})
}

func TestRandomSampler(t *testing.T) {
	vary := map[string]sampling.Distribution{
		"kappa": sampling.Uniform{Low: 0.025, High: 0.075},
		"t_env": sampling.Normal{Mu: 20, Sigma: 2},
	}

	s, err := sampling.NewRandomSampler(vary, 100, 7)
	require.NoError(t, err)
	require.Len(t, s.Points(), 100)

	for _, point := range s.Points() {
		kappa := point["kappa"].(float64)
		assert.GreaterOrEqual(t, kappa, 0.025)
		assert.LessOrEqual(t, kappa, 0.075)
		assert.False(t, math.IsNaN(point["t_env"].(float64)))
	}

	t.Run("SeedReproducible", func(t *testing.T) {
		again, err := sampling.NewRandomSampler(vary, 100, 7)
		require.NoError(t, err)
		assert.Equal(t, s.Points(), again.Points())

		other, err := sampling.NewRandomSampler(vary, 100, 8)
		require.NoError(t, err)
		assert.NotEqual(t, s.Points(), other.Points())
	})
}

func TestSaltelliSampler(t *testing.T) {
	vary := map[string]sampling.Distribution{
		"a": sampling.Uniform{Low: 0, High: 1},
		"b": sampling.Uniform{Low: 10, High: 20},
	}

	s, err := sampling.NewSaltelliSampler(vary, 5, 42)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.Equal(t, 5, s.N())

	points := s.Points()
	require.Len(t, points, 5*(2+2))

	// Each block is A, A-with-a-from-B, A-with-b-from-B, B.
	for i := 0; i < 5; i++ {
		block := points[i*4 : i*4+4]
		a, b := block[0], block[3]

		assert.Equal(t, b["a"], block[1]["a"])
		assert.Equal(t, a["b"], block[1]["b"])
		assert.Equal(t, a["a"], block[2]["a"])
		assert.Equal(t, b["b"], block[2]["b"])

		for _, p := range block {
			v := p["a"].(float64)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 1.0)
			w := p["b"].(float64)
			assert.GreaterOrEqual(t, w, 10.0)
			assert.Less(t, w, 20.0)
		}
	}

	same, err := sampling.NewSaltelliSampler(vary, 5, 42)
	require.NoError(t, err)
	assert.Equal(t, points, same.Points())

	other, err := sampling.NewSaltelliSampler(vary, 5, 43)
	require.NoError(t, err)
	assert.NotEqual(t, points, other.Points())

	_, err = sampling.NewSaltelliSampler(nil, 5, 1)
	assert.Error(t, err)
	_, err = sampling.NewSaltelliSampler(vary, 0, 1)
	assert.Error(t, err)
}
