package sampling

import (
	"fmt"
	"sort"

	"uqflow/internal/params"
)

// Sampler produces the sampled points of a campaign design. Designs are
// finite: Points returns every point, in a stable order.
type Sampler interface {
	Names() []string
	Points() []params.Point
}

// PCESampler builds a tensor-product Gaussian quadrature design over the
// varied parameters, suitable for non-intrusive polynomial chaos expansion.
// Each dimension gets order+1 nodes from its distribution's quadrature rule;
// the design enumerates the tensor product in row-major order over the sorted
// parameter names, with the last name varying fastest.
type PCESampler struct {
	Order int

	names   []string
	vary    map[string]Distribution
	nodes   [][]float64
	weights [][]float64
	points  []params.Point
}

var _ Sampler = (*PCESampler)(nil)

func NewPCESampler(vary map[string]Distribution, order int) (*PCESampler, error) {
	if len(vary) == 0 {
		return nil, fmt.Errorf("pce sampler requires at least one varied parameter")
	}
	if order < 1 {
		return nil, fmt.Errorf("pce sampler requires polynomial order >= 1, got %d", order)
	}

	names := make([]string, 0, len(vary))
	for name := range vary {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &PCESampler{
		Order: order,
		names: names,
		vary:  vary,
	}

	for _, name := range names {
		nodes, weights := vary[name].GaussPoints(order + 1)
		s.nodes = append(s.nodes, nodes)
		s.weights = append(s.weights, weights)
	}

	s.points = make([]params.Point, s.Size())
	for i := range s.points {
		multi := s.MultiIndex(i)
		point := make(params.Point, len(names))
		for d, name := range names {
			point[name] = s.nodes[d][multi[d]]
		}
		s.points[i] = point
	}

	return s, nil
}

func (s *PCESampler) Names() []string { return s.names }

func (s *PCESampler) Vary() map[string]Distribution { return s.vary }

// Size is the number of design points, (order+1)^dims.
func (s *PCESampler) Size() int {
	size := 1
	for range s.names {
		size *= s.Order + 1
	}
	return size
}

func (s *PCESampler) Points() []params.Point { return s.points }

// MultiIndex maps a design point index to its per-dimension node indices.
func (s *PCESampler) MultiIndex(i int) []int {
	m := s.Order + 1
	multi := make([]int, len(s.names))
	for d := len(s.names) - 1; d >= 0; d-- {
		multi[d] = i % m
		i /= m
	}
	return multi
}

// Nodes returns the quadrature nodes of dimension d.
func (s *PCESampler) Nodes(d int) []float64 { return s.nodes[d] }

// Weights returns the probability weights of dimension d.
func (s *PCESampler) Weights(d int) []float64 { return s.weights[d] }

// Weight is the product probability weight of design point i.
func (s *PCESampler) Weight(i int) float64 {
	w := 1.0
	for d, k := range s.MultiIndex(i) {
		w *= s.weights[d][k]
	}
	return w
}
