package analysis

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"uqflow/internal/sampling"

	"gonum.org/v1/gonum/stat"
)

// QMC is the analysis element paired with a SaltelliSampler. Moments and
// percentiles come from the two independent sample matrices; first-order and
// total-order Sobol indices use the Saltelli pick-and-freeze estimators, with
// bootstrap confidence intervals.
type QMC struct {
	sampler *sampling.SaltelliSampler
	qoiCols []string

	// Bootstrap is the number of resamples; Alpha the two-sided miss
	// probability of the confidence intervals.
	Bootstrap int
	Alpha     float64
	Seed      uint64
}

var _ Element = (*QMC)(nil)

func NewQMC(sampler *sampling.SaltelliSampler, qoiCols []string) (*QMC, error) {
	if sampler == nil {
		return nil, fmt.Errorf("qmc analysis requires the paired saltelli sampler")
	}
	if len(qoiCols) == 0 {
		return nil, fmt.Errorf("qmc analysis requires at least one quantity of interest")
	}
	return &QMC{sampler: sampler, qoiCols: qoiCols, Bootstrap: 1000, Alpha: 0.05, Seed: 1}, nil
}

func (a *QMC) Name() string { return "qmc_analysis" }

func (a *QMC) Analyse(df *DataFrame) (*Results, error) {
	if df == nil || len(df.Rows) == 0 {
		return nil, fmt.Errorf("qmc analysis needs a non-empty data frame")
	}

	names := a.sampler.Names()
	n := a.sampler.N()
	d := len(names)
	if len(df.Rows) != n*(d+2) {
		return nil, fmt.Errorf("qmc analysis needs one row per design point: got %d rows for a design of %d", len(df.Rows), n*(d+2))
	}

	results := &Results{
		QoIs:         a.qoiCols,
		Moments:      make(map[string]Moments),
		Percentiles:  make(map[string]Percentiles),
		SobolFirst:   make(map[string]map[string][]float64),
		SobolTotal:   make(map[string]map[string][]float64),
		SobolFirstCI: make(map[string]map[string]Interval),
		SobolTotalCI: make(map[string]map[string]Interval),
	}

	for _, qoi := range a.qoiCols {
		values, err := df.Column(qoi)
		if err != nil {
			return nil, fmt.Errorf("qmc analysis: %w", err)
		}

		width := len(values[0])
		moments := Moments{
			Mean: make([]float64, width),
			Var:  make([]float64, width),
			Std:  make([]float64, width),
		}
		percentiles := Percentiles{P10: make([]float64, width), P90: make([]float64, width)}

		first := make(map[string][]float64, d)
		total := make(map[string][]float64, d)
		firstCI := make(map[string]Interval, d)
		totalCI := make(map[string]Interval, d)
		for _, name := range names {
			first[name] = make([]float64, width)
			total[name] = make([]float64, width)
			firstCI[name] = Interval{Low: make([]float64, width), High: make([]float64, width)}
			totalCI[name] = Interval{Low: make([]float64, width), High: make([]float64, width)}
		}

		for c := 0; c < width; c++ {
			yA, yB, yAB := a.separate(values, c)

			samples := append(append([]float64(nil), yA...), yB...)
			moments.Mean[c] = stat.Mean(samples, nil)
			moments.Var[c] = stat.Variance(samples, nil)
			moments.Std[c] = math.Sqrt(moments.Var[c])

			sort.Float64s(samples)
			percentiles.P10[c] = stat.Quantile(0.1, stat.Empirical, samples, nil)
			percentiles.P90[c] = stat.Quantile(0.9, stat.Empirical, samples, nil)

			idx := make([]int, n)
			for i := range idx {
				idx[i] = i
			}
			for k, name := range names {
				first[name][c] = sobolFirstOrder(yA, yB, yAB[k], idx)
				total[name][c] = sobolTotalOrder(yA, yB, yAB[k], idx)
			}

			a.bootstrapSobolCI(yA, yB, yAB, c, names, firstCI, totalCI)
		}

		results.Moments[qoi] = moments
		results.Percentiles[qoi] = percentiles
		results.SobolFirst[qoi] = first
		results.SobolTotal[qoi] = total
		results.SobolFirstCI[qoi] = firstCI
		results.SobolTotalCI[qoi] = totalCI
	}

	return results, nil
}

// separate splits the flat evaluation list back into the A, B and crossed
// blocks of the pick-and-freeze design, for one output component.
func (a *QMC) separate(values [][]float64, c int) (yA, yB []float64, yAB [][]float64) {
	n := a.sampler.N()
	d := len(a.sampler.Names())
	step := d + 2

	yA = make([]float64, n)
	yB = make([]float64, n)
	yAB = make([][]float64, d)
	for k := range yAB {
		yAB[k] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		block := i * step
		yA[i] = values[block][c]
		yB[i] = values[block+d+1][c]
		for k := 0; k < d; k++ {
			yAB[k][i] = values[block+1+k][c]
		}
	}
	return yA, yB, yAB
}

// sobolFirstOrder is the Saltelli 2010 estimator V_i / V over the base
// samples selected by idx.
func sobolFirstOrder(yA, yB, yABk []float64, idx []int) float64 {
	variance := pickedVariance(yA, yB, idx)
	if variance == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += yB[i] * (yABk[i] - yA[i])
	}
	return sum / float64(len(idx)) / variance
}

// sobolTotalOrder is the Jansen estimator V_Ti / V over the base samples
// selected by idx.
func sobolTotalOrder(yA, yB, yABk []float64, idx []int) float64 {
	variance := pickedVariance(yA, yB, idx)
	if variance == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		d := yA[i] - yABk[i]
		sum += d * d
	}
	return 0.5 * sum / float64(len(idx)) / variance
}

// pickedVariance is the sample variance over the A and B evaluations of the
// selected base samples.
func pickedVariance(yA, yB []float64, idx []int) float64 {
	picked := make([]float64, 0, 2*len(idx))
	for _, i := range idx {
		picked = append(picked, yA[i], yB[i])
	}
	return stat.Variance(picked, nil)
}

// bootstrapSobolCI resamples base samples with replacement and takes
// percentile bounds of the re-estimated Sobol indices.
func (a *QMC) bootstrapSobolCI(yA, yB []float64, yAB [][]float64, c int, names []string, firstCI, totalCI map[string]Interval) {
	n := len(yA)
	rng := rand.New(rand.NewPCG(a.Seed, a.Seed))

	firsts := make([][]float64, len(names))
	totals := make([][]float64, len(names))
	for k := range names {
		firsts[k] = make([]float64, a.Bootstrap)
		totals[k] = make([]float64, a.Bootstrap)
	}

	idx := make([]int, n)
	for b := 0; b < a.Bootstrap; b++ {
		for i := range idx {
			idx[i] = rng.IntN(n)
		}
		for k := range names {
			firsts[k][b] = sobolFirstOrder(yA, yB, yAB[k], idx)
			totals[k][b] = sobolTotalOrder(yA, yB, yAB[k], idx)
		}
	}

	for k, name := range names {
		sort.Float64s(firsts[k])
		sort.Float64s(totals[k])
		firstCI[name].Low[c] = stat.Quantile(a.Alpha/2, stat.Empirical, firsts[k], nil)
		firstCI[name].High[c] = stat.Quantile(1-a.Alpha/2, stat.Empirical, firsts[k], nil)
		totalCI[name].Low[c] = stat.Quantile(a.Alpha/2, stat.Empirical, totals[k], nil)
		totalCI[name].High[c] = stat.Quantile(1-a.Alpha/2, stat.Empirical, totals[k], nil)
	}
}
