package analysis

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"uqflow/internal/sampling"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// surrogateSamples is the number of Monte Carlo draws used to estimate
	// percentiles and correlations from the quadrature surrogate.
	surrogateSamples = 5000
	surrogateSeed    = 42
)

// PCE is the analysis element paired with a PCESampler. Moments and Sobol
// indices are computed exactly on the tensor quadrature grid; percentiles and
// component correlations come from Monte Carlo evaluation of the
// tensor-product Lagrange surrogate through the grid.
type PCE struct {
	sampler *sampling.PCESampler
	qoiCols []string
}

var _ Element = (*PCE)(nil)

func NewPCE(sampler *sampling.PCESampler, qoiCols []string) (*PCE, error) {
	if sampler == nil {
		return nil, fmt.Errorf("pce analysis requires the paired pce sampler")
	}
	if len(qoiCols) == 0 {
		return nil, fmt.Errorf("pce analysis requires at least one quantity of interest")
	}
	return &PCE{sampler: sampler, qoiCols: qoiCols}, nil
}

func (a *PCE) Name() string { return "pce_analysis" }

func (a *PCE) Analyse(df *DataFrame) (*Results, error) {
	if df == nil || len(df.Rows) == 0 {
		return nil, fmt.Errorf("pce analysis needs a non-empty data frame")
	}
	if len(df.Rows) != a.sampler.Size() {
		return nil, fmt.Errorf("pce analysis needs one row per design point: got %d rows for a design of %d", len(df.Rows), a.sampler.Size())
	}

	results := &Results{
		QoIs:                a.qoiCols,
		Moments:             make(map[string]Moments),
		Percentiles:         make(map[string]Percentiles),
		SobolFirst:          make(map[string]map[string][]float64),
		SobolTotal:          make(map[string]map[string][]float64),
		OutputDistributions: make(map[string][][]float64),
		Correlations:        make(map[string]*mat.SymDense),
	}

	for _, qoi := range a.qoiCols {
		values, err := df.Column(qoi)
		if err != nil {
			return nil, fmt.Errorf("pce analysis: %w", err)
		}

		moments := a.moments(values)
		results.Moments[qoi] = moments
		results.SobolFirst[qoi], results.SobolTotal[qoi] = a.sobol(values, moments)

		p10, p90, dist, corr := a.surrogateStatistics(values)
		results.Percentiles[qoi] = Percentiles{P10: p10, P90: p90}
		results.OutputDistributions[qoi] = dist
		if corr != nil {
			results.Correlations[qoi] = corr
		}
	}

	return results, nil
}

func (a *PCE) moments(values [][]float64) Moments {
	width := len(values[0])
	m := Moments{
		Mean: make([]float64, width),
		Var:  make([]float64, width),
		Std:  make([]float64, width),
	}

	for i, row := range values {
		w := a.sampler.Weight(i)
		for c, v := range row {
			m.Mean[c] += w * v
		}
	}
	for i, row := range values {
		w := a.sampler.Weight(i)
		for c, v := range row {
			d := v - m.Mean[c]
			m.Var[c] += w * d * d
		}
	}
	for c := range m.Std {
		m.Std[c] = math.Sqrt(m.Var[c])
	}
	return m
}

// sobol computes first-order and total-order Sobol indices per varied
// parameter. On a full tensor grid the conditional expectations needed for
// the variance decomposition are exact quadrature sums over the remaining
// dimensions.
func (a *PCE) sobol(values [][]float64, moments Moments) (first, total map[string][]float64) {
	names := a.sampler.Names()
	m := a.sampler.Order + 1
	width := len(values[0])
	size := a.sampler.Size()

	multis := make([][]int, size)
	for i := range multis {
		multis[i] = a.sampler.MultiIndex(i)
	}

	first = make(map[string][]float64, len(names))
	total = make(map[string][]float64, len(names))

	for d, name := range names {
		wd := a.sampler.Weights(d)

		// E[f | x_d = node_k], one vector per node of dimension d.
		cond := make([][]float64, m)
		for k := range cond {
			cond[k] = make([]float64, width)
		}
		// E[f | everything except x_d], one vector per complement point,
		// with its complement weight.
		compCount := size / m
		condComp := make([][]float64, compCount)
		compWeight := make([]float64, compCount)
		for j := range condComp {
			condComp[j] = make([]float64, width)
		}

		for i, row := range values {
			k := multis[i][d]
			w := a.sampler.Weight(i)
			j := complementIndex(multis[i], d, m)

			for c, v := range row {
				cond[k][c] += w / wd[k] * v
				condComp[j][c] += wd[k] * v
			}
			compWeight[j] = w / wd[k]
		}

		s1 := make([]float64, width)
		st := make([]float64, width)
		for c := 0; c < width; c++ {
			var vFirst, vComp float64
			for k := 0; k < m; k++ {
				delta := cond[k][c] - moments.Mean[c]
				vFirst += wd[k] * delta * delta
			}
			for j := 0; j < compCount; j++ {
				delta := condComp[j][c] - moments.Mean[c]
				vComp += compWeight[j] * delta * delta
			}

			if moments.Var[c] > 0 {
				s1[c] = vFirst / moments.Var[c]
				st[c] = 1 - vComp/moments.Var[c]
				if st[c] < 0 {
					st[c] = 0
				}
			}
		}

		first[name] = s1
		total[name] = st
	}

	return first, total
}

// complementIndex flattens a multi-index with dimension d removed, mixed
// radix m.
func complementIndex(multi []int, d, m int) int {
	j := 0
	for q, k := range multi {
		if q == d {
			continue
		}
		j = j*m + k
	}
	return j
}

// surrogateStatistics samples the varied parameters, evaluates the Lagrange
// surrogate at each draw, and estimates p10/p90 per component, the output
// distribution (sorted samples per component) and the correlation matrix
// between components.
func (a *PCE) surrogateStatistics(values [][]float64) (p10, p90 []float64, dist [][]float64, corr *mat.SymDense) {
	names := a.sampler.Names()
	vary := a.sampler.Vary()
	width := len(values[0])
	size := a.sampler.Size()

	multis := make([][]int, size)
	for i := range multis {
		multis[i] = a.sampler.MultiIndex(i)
	}

	src := rand.NewPCG(surrogateSeed, surrogateSeed)
	samples := mat.NewDense(surrogateSamples, width, nil)
	point := make([]float64, len(names))
	basis := make([][]float64, len(names))

	for s := 0; s < surrogateSamples; s++ {
		for d, name := range names {
			point[d] = vary[name].Sample(src)
			basis[d] = lagrangeBasis(a.sampler.Nodes(d), point[d])
		}

		for c := 0; c < width; c++ {
			samples.Set(s, c, 0)
		}
		for i, row := range values {
			coeff := 1.0
			for d := range names {
				coeff *= basis[d][multis[i][d]]
			}
			for c, v := range row {
				samples.Set(s, c, samples.At(s, c)+coeff*v)
			}
		}
	}

	p10 = make([]float64, width)
	p90 = make([]float64, width)
	dist = make([][]float64, width)
	for c := 0; c < width; c++ {
		column := make([]float64, surrogateSamples)
		mat.Col(column, c, samples)
		sort.Float64s(column)
		dist[c] = column
		p10[c] = stat.Quantile(0.1, stat.Empirical, column, nil)
		p90[c] = stat.Quantile(0.9, stat.Empirical, column, nil)
	}

	if width > 1 {
		corr = mat.NewSymDense(width, nil)
		stat.CorrelationMatrix(corr, samples, nil)
	}

	return p10, p90, dist, corr
}

// lagrangeBasis evaluates every Lagrange cardinal polynomial through the
// given nodes at x.
func lagrangeBasis(nodes []float64, x float64) []float64 {
	basis := make([]float64, len(nodes))
	for k := range nodes {
		l := 1.0
		for j := range nodes {
			if j == k {
				continue
			}
			l *= (x - nodes[j]) / (nodes[k] - nodes[j])
		}
		basis[k] = l
	}
	return basis
}
