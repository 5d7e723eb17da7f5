package analysis

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/mat"
)

// Moments are per-component statistical moments of a quantity of interest.
type Moments struct {
	Mean []float64
	Var  []float64
	Std  []float64
}

// Percentiles are per-component percentile estimates of a quantity of
// interest's output distribution.
type Percentiles struct {
	P10 []float64
	P90 []float64
}

// Interval is a per-component confidence interval.
type Interval struct {
	Low  []float64
	High []float64
}

// Results holds the outcome of an analysis element. Sobol maps are keyed by
// quantity of interest, then by varied parameter; each entry is per-component.
type Results struct {
	QoIs []string

	Moments     map[string]Moments
	Percentiles map[string]Percentiles

	SobolFirst map[string]map[string][]float64
	SobolTotal map[string]map[string][]float64

	// SobolFirstCI and SobolTotalCI hold bootstrap confidence intervals on
	// the Sobol estimates, when the element computes them.
	SobolFirstCI map[string]map[string]Interval
	SobolTotalCI map[string]map[string]Interval

	// OutputDistributions holds, per quantity of interest and per component,
	// the sorted surrogate samples of the output distribution.
	OutputDistributions map[string][][]float64

	// MeanCI holds bootstrap confidence intervals on the mean, when the
	// element computes them.
	MeanCI map[string]Interval

	// Correlations holds, per quantity of interest, the correlation matrix
	// between its output components. Nil for scalar quantities.
	Correlations map[string]*mat.SymDense
}

// Describe renders a summary table of the results, one block per quantity of
// interest.
func (r *Results) Describe() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	for _, qoi := range r.QoIs {
		moments := r.Moments[qoi]
		fmt.Fprintf(w, "%s\t(n=%d components)\n", qoi, len(moments.Mean))
		fmt.Fprintf(w, "  mean\t%s\n", summarize(moments.Mean))
		fmt.Fprintf(w, "  std\t%s\n", summarize(moments.Std))
		if p, ok := r.Percentiles[qoi]; ok {
			fmt.Fprintf(w, "  p10\t%s\n", summarize(p.P10))
			fmt.Fprintf(w, "  p90\t%s\n", summarize(p.P90))
		}
		if dist, ok := r.OutputDistributions[qoi]; ok && len(dist) > 0 {
			fmt.Fprintf(w, "  distribution\t%d samples per component\n", len(dist[0]))
		}

		if first, ok := r.SobolFirst[qoi]; ok {
			names := make([]string, 0, len(first))
			for name := range first {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "  sobol_first[%s]\t%s\n", name, summarize(first[name]))
			}
			for _, name := range names {
				fmt.Fprintf(w, "  sobol_total[%s]\t%s\n", name, summarize(r.SobolTotal[qoi][name]))
			}
		}
	}

	w.Flush()
	return b.String()
}

// summarize prints a short vector in full and a long one by its ends.
func summarize(values []float64) string {
	format := func(vs []float64) string {
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = fmt.Sprintf("%.6g", v)
		}
		return strings.Join(parts, ", ")
	}

	if len(values) <= 6 {
		return format(values)
	}
	return fmt.Sprintf("%s, ..., %s", format(values[:3]), format(values[len(values)-3:]))
}
