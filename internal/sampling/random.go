package sampling

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"uqflow/internal/params"
)

// RandomSampler draws independent Monte Carlo samples from the varied
// parameters' distributions. The design is reproducible from the seed.
type RandomSampler struct {
	names  []string
	vary   map[string]Distribution
	n      int
	seed   uint64
	points []params.Point
}

var _ Sampler = (*RandomSampler)(nil)

func NewRandomSampler(vary map[string]Distribution, n int, seed uint64) (*RandomSampler, error) {
	if len(vary) == 0 {
		return nil, fmt.Errorf("random sampler requires at least one varied parameter")
	}
	if n < 1 {
		return nil, fmt.Errorf("random sampler requires at least one sample, got %d", n)
	}

	names := make([]string, 0, len(vary))
	for name := range vary {
		names = append(names, name)
	}
	sort.Strings(names)

	src := rand.NewPCG(seed, seed)
	points := make([]params.Point, n)
	for i := range points {
		point := make(params.Point, len(names))
		for _, name := range names {
			point[name] = vary[name].Sample(src)
		}
		points[i] = point
	}

	return &RandomSampler{names: names, vary: vary, n: n, seed: seed, points: points}, nil
}

func (s *RandomSampler) Names() []string { return s.names }

func (s *RandomSampler) Vary() map[string]Distribution { return s.vary }

func (s *RandomSampler) N() int { return s.n }

func (s *RandomSampler) Seed() uint64 { return s.seed }

func (s *RandomSampler) Points() []params.Point { return s.points }
