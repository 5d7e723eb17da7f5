package analysis_test

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"uqflow/internal/analysis"
	"uqflow/internal/params"
	"uqflow/internal/sampling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameFor evaluates f at every design point of the sampler and builds the
// collated data frame an executed campaign would produce.
func frameFor(t *testing.T, s sampling.Sampler, qoi string, f func(point params.Point) []float64) *analysis.DataFrame {
	t.Helper()
	df := &analysis.DataFrame{}
	for i, point := range s.Points() {
		df.Rows = append(df.Rows, analysis.Row{
			RunID:   fmt.Sprintf("run_%d", i),
			Inputs:  point,
			Outputs: map[string][]float64{qoi: f(point)},
		})
	}
	return df
}

func TestPCEAdditiveModel(t *testing.T) {
	// f = kappa + t_env with kappa ~ U(0,2), t_env ~ U(0,6). Mean, variance
	// and Sobol indices are known in closed form.
	vary := map[string]sampling.Distribution{
		"kappa": sampling.Uniform{Low: 0, High: 2},
		"t_env": sampling.Uniform{Low: 0, High: 6},
	}
	sampler, err := sampling.NewPCESampler(vary, 3)
	require.NoError(t, err)

	df := frameFor(t, sampler, "y", func(p params.Point) []float64 {
		return []float64{p["kappa"].(float64) + p["t_env"].(float64)}
	})

	element, err := analysis.NewPCE(sampler, []string{"y"})
	require.NoError(t, err)

	results, err := element.Analyse(df)
	require.NoError(t, err)

	varKappa := 4.0 / 12.0
	varTEnv := 36.0 / 12.0
	total := varKappa + varTEnv

	moments := results.Moments["y"]
	assert.InDelta(t, 4.0, moments.Mean[0], 1e-9)
	assert.InDelta(t, total, moments.Var[0], 1e-9)

	assert.InDelta(t, varKappa/total, results.SobolFirst["y"]["kappa"][0], 1e-9)
	assert.InDelta(t, varTEnv/total, results.SobolFirst["y"]["t_env"][0], 1e-9)
	// Additive model: total order equals first order.
	assert.InDelta(t, varKappa/total, results.SobolTotal["y"]["kappa"][0], 1e-9)
	assert.InDelta(t, varTEnv/total, results.SobolTotal["y"]["t_env"][0], 1e-9)

	p := results.Percentiles["y"]
	assert.Greater(t, moments.Mean[0], p.P10[0])
	assert.Less(t, moments.Mean[0], p.P90[0])
	assert.Greater(t, p.P10[0], 0.0)
	assert.Less(t, p.P90[0], 8.0)
}

func TestPCEInteractionModel(t *testing.T) {
	// f = x1 * x2 with both ~ U(0,1): Var = 7/144, V1 = V2 = 1/48,
	// the interaction term carries the rest.
	vary := map[string]sampling.Distribution{
		"x1": sampling.Uniform{Low: 0, High: 1},
		"x2": sampling.Uniform{Low: 0, High: 1},
	}
	sampler, err := sampling.NewPCESampler(vary, 3)
	require.NoError(t, err)

	df := frameFor(t, sampler, "y", func(p params.Point) []float64 {
		return []float64{p["x1"].(float64) * p["x2"].(float64)}
	})

	element, err := analysis.NewPCE(sampler, []string{"y"})
	require.NoError(t, err)
	results, err := element.Analyse(df)
	require.NoError(t, err)

	variance := 7.0 / 144.0
	vSingle := 1.0 / 48.0

	assert.InDelta(t, 0.25, results.Moments["y"].Mean[0], 1e-9)
	assert.InDelta(t, variance, results.Moments["y"].Var[0], 1e-9)
	assert.InDelta(t, vSingle/variance, results.SobolFirst["y"]["x1"][0], 1e-9)
	assert.InDelta(t, vSingle/variance, results.SobolFirst["y"]["x2"][0], 1e-9)
	// Total order picks up the interaction: 1 - V2/V.
	assert.InDelta(t, 1-vSingle/variance, results.SobolTotal["y"]["x1"][0], 1e-9)
	assert.InDelta(t, 1-vSingle/variance, results.SobolTotal["y"]["x2"][0], 1e-9)
}

func TestPCEVectorQoI(t *testing.T) {
	vary := map[string]sampling.Distribution{
		"x": sampling.Uniform{Low: 0, High: 1},
		"z": sampling.Uniform{Low: 0, High: 1},
	}
	sampler, err := sampling.NewPCESampler(vary, 2)
	require.NoError(t, err)

	df := frameFor(t, sampler, "te", func(p params.Point) []float64 {
		x := p["x"].(float64)
		return []float64{x, 2 * x, p["z"].(float64)}
	})

	element, err := analysis.NewPCE(sampler, []string{"te"})
	require.NoError(t, err)
	results, err := element.Analyse(df)
	require.NoError(t, err)

	moments := results.Moments["te"]
	require.Len(t, moments.Mean, 3)
	assert.InDelta(t, 0.5, moments.Mean[0], 1e-9)
	assert.InDelta(t, 1.0, moments.Mean[1], 1e-9)
	assert.InDelta(t, 4.0/12.0, moments.Var[1], 1e-9)

	// Components 0 and 1 are perfectly correlated, component 2 is
	// independent of them.
	corr := results.Correlations["te"]
	require.NotNil(t, corr)
	assert.InDelta(t, 1.0, corr.At(0, 1), 1e-6)
	assert.InDelta(t, 0.0, corr.At(0, 2), 0.05)

	// First component depends only on x.
	assert.InDelta(t, 1.0, results.SobolFirst["te"]["x"][0], 1e-9)
	assert.InDelta(t, 0.0, results.SobolFirst["te"]["z"][0], 1e-9)
}

func TestPCEAnalyseErrors(t *testing.T) {
	vary := map[string]sampling.Distribution{"x": sampling.Uniform{Low: 0, High: 1}}
	sampler, err := sampling.NewPCESampler(vary, 1)
	require.NoError(t, err)

	element, err := analysis.NewPCE(sampler, []string{"y"})
	require.NoError(t, err)

	t.Run("EmptyFrame", func(t *testing.T) {
		_, err := element.Analyse(&analysis.DataFrame{})
		assert.Error(t, err)
	})

	t.Run("WrongRowCount", func(t *testing.T) {
		df := &analysis.DataFrame{Rows: []analysis.Row{{RunID: "run_0", Outputs: map[string][]float64{"y": {1}}}}}
		_, err := element.Analyse(df)
		assert.Error(t, err)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		df := &analysis.DataFrame{Rows: []analysis.Row{
			{RunID: "run_0", Outputs: map[string][]float64{"z": {1}}},
			{RunID: "run_1", Outputs: map[string][]float64{"z": {2}}},
		}}
		_, err := element.Analyse(df)
		assert.Error(t, err)
	})

	t.Run("RequiresSampler", func(t *testing.T) {
		_, err := analysis.NewPCE(nil, []string{"y"})
		assert.Error(t, err)
	})

	t.Run("RequiresQoIs", func(t *testing.T) {
		_, err := analysis.NewPCE(sampler, nil)
		assert.Error(t, err)
	})
}

func TestBasicStats(t *testing.T) {
	df := &analysis.DataFrame{}
	for i := 0; i < 200; i++ {
		df.Rows = append(df.Rows, analysis.Row{
			RunID:   fmt.Sprintf("run_%d", i),
			Outputs: map[string][]float64{"y": {float64(i % 100)}},
		})
	}

	element, err := analysis.NewBasicStats([]string{"y"})
	require.NoError(t, err)

	results, err := element.Analyse(df)
	require.NoError(t, err)

	assert.InDelta(t, 49.5, results.Moments["y"].Mean[0], 1e-9)

	ci := results.MeanCI["y"]
	assert.Less(t, ci.Low[0], 49.5)
	assert.Greater(t, ci.High[0], 49.5)
	assert.InDelta(t, 49.5, ci.Low[0], 6.0)
	assert.InDelta(t, 49.5, ci.High[0], 6.0)
}

func TestResultsDescribe(t *testing.T) {
	vary := map[string]sampling.Distribution{
		"kappa": sampling.Uniform{Low: 0.025, High: 0.075},
		"t_env": sampling.Uniform{Low: 15, High: 25},
	}
	sampler, err := sampling.NewPCESampler(vary, 2)
	require.NoError(t, err)

	df := frameFor(t, sampler, "te", func(p params.Point) []float64 {
		return []float64{p["t_env"].(float64)}
	})

	element, err := analysis.NewPCE(sampler, []string{"te"})
	require.NoError(t, err)
	results, err := element.Analyse(df)
	require.NoError(t, err)

	out := results.Describe()
	assert.True(t, strings.Contains(out, "te"))
	assert.True(t, strings.Contains(out, "mean"))
	assert.True(t, strings.Contains(out, "sobol_first[kappa]"))
	assert.True(t, strings.Contains(out, "sobol_total[t_env]"))
}

func TestPCENormalInputs(t *testing.T) {
	// y = x with x ~ N(20, 2): moments are exact on the Gauss-Hermite grid
	// and the surrogate percentiles approach the normal quantiles.
	vary := map[string]sampling.Distribution{
		"x": sampling.Normal{Mu: 20, Sigma: 2},
	}
	sampler, err := sampling.NewPCESampler(vary, 3)
	require.NoError(t, err)

	df := frameFor(t, sampler, "y", func(p params.Point) []float64 {
		return []float64{p["x"].(float64)}
	})

	element, err := analysis.NewPCE(sampler, []string{"y"})
	require.NoError(t, err)
	results, err := element.Analyse(df)
	require.NoError(t, err)

	moments := results.Moments["y"]
	assert.InDelta(t, 20.0, moments.Mean[0], 1e-9)
	assert.InDelta(t, 4.0, moments.Var[0], 1e-9)
	assert.InDelta(t, 2.0, moments.Std[0], 1e-9)

	assert.InDelta(t, 1.0, results.SobolFirst["y"]["x"][0], 1e-9)
	assert.InDelta(t, 1.0, results.SobolTotal["y"]["x"][0], 1e-9)

	// N(20,2) quantiles: q10 = 20 - 1.2816*2, q90 = 20 + 1.2816*2.
	p := results.Percentiles["y"]
	assert.InDelta(t, 17.437, p.P10[0], 0.25)
	assert.InDelta(t, 22.563, p.P90[0], 0.25)
}

func TestPCEOutputDistribution(t *testing.T) {
	vary := map[string]sampling.Distribution{
		"kappa": sampling.Uniform{Low: 0, High: 2},
		"t_env": sampling.Uniform{Low: 0, High: 6},
	}
	sampler, err := sampling.NewPCESampler(vary, 3)
	require.NoError(t, err)

	df := frameFor(t, sampler, "y", func(p params.Point) []float64 {
		return []float64{p["kappa"].(float64) + p["t_env"].(float64)}
	})

	element, err := analysis.NewPCE(sampler, []string{"y"})
	require.NoError(t, err)
	results, err := element.Analyse(df)
	require.NoError(t, err)

	dist := results.OutputDistributions["y"]
	require.Len(t, dist, 1)
	require.Len(t, dist[0], 5000)
	assert.True(t, sort.Float64sAreSorted(dist[0]))

	// The reported percentiles are read off the same samples.
	p := results.Percentiles["y"]
	assert.GreaterOrEqual(t, p.P10[0], dist[0][400])
	assert.LessOrEqual(t, p.P10[0], dist[0][600])
	assert.GreaterOrEqual(t, p.P90[0], dist[0][4400])
	assert.LessOrEqual(t, p.P90[0], dist[0][4600])

	assert.Contains(t, results.Describe(), "5000 samples")
}

func TestQMCSobolAdditiveModel(t *testing.T) {
	// Same additive model as the quadrature test, estimated from a
	// pick-and-freeze design instead of the tensor grid.
	vary := map[string]sampling.Distribution{
		"kappa": sampling.Uniform{Low: 0, High: 2},
		"t_env": sampling.Uniform{Low: 0, High: 6},
	}
	sampler, err := sampling.NewSaltelliSampler(vary, 2048, 7)
	require.NoError(t, err)

	df := frameFor(t, sampler, "y", func(p params.Point) []float64 {
		return []float64{p["kappa"].(float64) + p["t_env"].(float64)}
	})

	element, err := analysis.NewQMC(sampler, []string{"y"})
	require.NoError(t, err)
	results, err := element.Analyse(df)
	require.NoError(t, err)

	varKappa := 4.0 / 12.0
	varTEnv := 36.0 / 12.0
	total := varKappa + varTEnv

	moments := results.Moments["y"]
	assert.InDelta(t, 4.0, moments.Mean[0], 0.2)
	assert.InDelta(t, total, moments.Var[0], 0.3)

	assert.InDelta(t, varKappa/total, results.SobolFirst["y"]["kappa"][0], 0.1)
	assert.InDelta(t, varTEnv/total, results.SobolFirst["y"]["t_env"][0], 0.1)
	assert.InDelta(t, varKappa/total, results.SobolTotal["y"]["kappa"][0], 0.1)
	assert.InDelta(t, varTEnv/total, results.SobolTotal["y"]["t_env"][0], 0.1)

	for _, name := range []string{"kappa", "t_env"} {
		firstCI := results.SobolFirstCI["y"][name]
		assert.LessOrEqual(t, firstCI.Low[0], results.SobolFirst["y"][name][0])
		assert.GreaterOrEqual(t, firstCI.High[0], results.SobolFirst["y"][name][0])

		totalCI := results.SobolTotalCI["y"][name]
		assert.LessOrEqual(t, totalCI.Low[0], results.SobolTotal["y"][name][0])
		assert.GreaterOrEqual(t, totalCI.High[0], results.SobolTotal["y"][name][0])
		assert.Less(t, totalCI.High[0]-totalCI.Low[0], 0.3)
	}

	p := results.Percentiles["y"]
	assert.Greater(t, moments.Mean[0], p.P10[0])
	assert.Less(t, moments.Mean[0], p.P90[0])
}

func TestQMCAnalyseErrors(t *testing.T) {
	vary := map[string]sampling.Distribution{"x": sampling.Uniform{Low: 0, High: 1}}
	sampler, err := sampling.NewSaltelliSampler(vary, 4, 1)
	require.NoError(t, err)

	element, err := analysis.NewQMC(sampler, []string{"y"})
	require.NoError(t, err)

	t.Run("EmptyFrame", func(t *testing.T) {
		_, err := element.Analyse(&analysis.DataFrame{})
		assert.Error(t, err)
	})

	t.Run("WrongRowCount", func(t *testing.T) {
		df := &analysis.DataFrame{Rows: []analysis.Row{{RunID: "run_1", Outputs: map[string][]float64{"y": {1}}}}}
		_, err := element.Analyse(df)
		assert.Error(t, err)
	})

	t.Run("RequiresSampler", func(t *testing.T) {
		_, err := analysis.NewQMC(nil, []string{"y"})
		assert.Error(t, err)
	})

	t.Run("RequiresQoIs", func(t *testing.T) {
		_, err := analysis.NewQMC(sampler, nil)
		assert.Error(t, err)
	})
}
