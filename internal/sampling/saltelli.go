package sampling

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"uqflow/internal/params"
)

// SaltelliSampler builds the pick-and-freeze design for Monte Carlo Sobol
// estimation: two independent sample matrices A and B plus, per varied
// parameter, the matrix A with that parameter's column taken from B. Points
// are laid out in blocks of d+2 per base sample: the A row, the d crossed
// rows in sorted name order, then the B row. The design is reproducible from
// the seed.
type SaltelliSampler struct {
	names  []string
	vary   map[string]Distribution
	n      int
	seed   uint64
	points []params.Point
}

var _ Sampler = (*SaltelliSampler)(nil)

func NewSaltelliSampler(vary map[string]Distribution, n int, seed uint64) (*SaltelliSampler, error) {
	if len(vary) == 0 {
		return nil, fmt.Errorf("saltelli sampler requires at least one varied parameter")
	}
	if n < 1 {
		return nil, fmt.Errorf("saltelli sampler requires at least one base sample, got %d", n)
	}

	names := make([]string, 0, len(vary))
	for name := range vary {
		names = append(names, name)
	}
	sort.Strings(names)

	src := rand.NewPCG(seed, seed)
	d := len(names)
	points := make([]params.Point, 0, n*(d+2))

	a := make([]float64, d)
	b := make([]float64, d)
	for i := 0; i < n; i++ {
		for k, name := range names {
			a[k] = vary[name].Sample(src)
			b[k] = vary[name].Sample(src)
		}

		points = append(points, pointFrom(names, a))
		for k := range names {
			crossed := append([]float64(nil), a...)
			crossed[k] = b[k]
			points = append(points, pointFrom(names, crossed))
		}
		points = append(points, pointFrom(names, b))
	}

	return &SaltelliSampler{names: names, vary: vary, n: n, seed: seed, points: points}, nil
}

func pointFrom(names []string, row []float64) params.Point {
	point := make(params.Point, len(names))
	for k, name := range names {
		point[name] = row[k]
	}
	return point
}

func (s *SaltelliSampler) Names() []string { return s.names }

func (s *SaltelliSampler) Vary() map[string]Distribution { return s.vary }

// N is the number of base samples; the design holds N * (dims + 2) points.
func (s *SaltelliSampler) N() int { return s.n }

func (s *SaltelliSampler) Seed() uint64 { return s.seed }

func (s *SaltelliSampler) Points() []params.Point { return s.points }
