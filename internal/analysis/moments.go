package analysis

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// BasicStats is the analysis element for random (Monte Carlo) designs:
// sample moments and percentiles per quantity of interest, with bootstrap
// confidence intervals on the mean.
type BasicStats struct {
	qoiCols []string

	// Bootstrap is the number of resamples; Alpha the two-sided miss
	// probability of the confidence interval.
	Bootstrap int
	Alpha     float64
	Seed      uint64
}

var _ Element = (*BasicStats)(nil)

func NewBasicStats(qoiCols []string) (*BasicStats, error) {
	if len(qoiCols) == 0 {
		return nil, fmt.Errorf("basic stats analysis requires at least one quantity of interest")
	}
	return &BasicStats{qoiCols: qoiCols, Bootstrap: 1000, Alpha: 0.05, Seed: 1}, nil
}

func (a *BasicStats) Name() string { return "basic_stats" }

func (a *BasicStats) Analyse(df *DataFrame) (*Results, error) {
	if df == nil || len(df.Rows) == 0 {
		return nil, fmt.Errorf("basic stats analysis needs a non-empty data frame")
	}

	results := &Results{
		QoIs:        a.qoiCols,
		Moments:     make(map[string]Moments),
		Percentiles: make(map[string]Percentiles),
		MeanCI:      make(map[string]Interval),
	}

	for _, qoi := range a.qoiCols {
		values, err := df.Column(qoi)
		if err != nil {
			return nil, fmt.Errorf("basic stats analysis: %w", err)
		}

		n := len(values)
		width := len(values[0])
		m := Moments{
			Mean: make([]float64, width),
			Var:  make([]float64, width),
			Std:  make([]float64, width),
		}
		p := Percentiles{P10: make([]float64, width), P90: make([]float64, width)}

		column := make([]float64, n)
		for c := 0; c < width; c++ {
			for i := range values {
				column[i] = values[i][c]
			}
			m.Mean[c] = stat.Mean(column, nil)
			m.Var[c] = stat.Variance(column, nil)
			m.Std[c] = math.Sqrt(m.Var[c])

			sorted := append([]float64(nil), column...)
			sort.Float64s(sorted)
			p.P10[c] = stat.Quantile(0.1, stat.Empirical, sorted, nil)
			p.P90[c] = stat.Quantile(0.9, stat.Empirical, sorted, nil)
		}

		results.Moments[qoi] = m
		results.Percentiles[qoi] = p
		results.MeanCI[qoi] = a.bootstrapMeanCI(values)
	}

	return results, nil
}

// bootstrapMeanCI resamples rows with replacement and takes percentile
// bounds of the resampled means.
func (a *BasicStats) bootstrapMeanCI(values [][]float64) Interval {
	n := len(values)
	width := len(values[0])
	rng := rand.New(rand.NewPCG(a.Seed, a.Seed))

	means := make([][]float64, width)
	for c := range means {
		means[c] = make([]float64, a.Bootstrap)
	}

	for b := 0; b < a.Bootstrap; b++ {
		sums := make([]float64, width)
		for i := 0; i < n; i++ {
			row := values[rng.IntN(n)]
			for c, v := range row {
				sums[c] += v
			}
		}
		for c := range sums {
			means[c][b] = sums[c] / float64(n)
		}
	}

	ci := Interval{Low: make([]float64, width), High: make([]float64, width)}
	for c := 0; c < width; c++ {
		sort.Float64s(means[c])
		ci.Low[c] = stat.Quantile(a.Alpha/2, stat.Empirical, means[c], nil)
		ci.High[c] = stat.Quantile(1-a.Alpha/2, stat.Empirical, means[c], nil)
	}
	return ci
}
