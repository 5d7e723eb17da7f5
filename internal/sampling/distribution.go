package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is a one-dimensional input distribution for a varied
// parameter. Implementations provide random draws, the quantile function, and
// Gaussian quadrature rules matched to the distribution's weight, which the
// polynomial chaos sampler uses to build its design.
type Distribution interface {
	Sample(src rand.Source) float64
	Quantile(p float64) float64
	Mean() float64

	// GaussPoints returns n nodes and probability weights such that
	// sum(w_i * f(x_i)) approximates E[f(X)], exactly for polynomials of
	// degree up to 2n-1.
	GaussPoints(n int) (nodes, weights []float64)

	String() string
}

type Uniform struct {
	Low  float64
	High float64
}

var _ Distribution = Uniform{}

func (u Uniform) dist(src rand.Source) distuv.Uniform {
	return distuv.Uniform{Min: u.Low, Max: u.High, Src: src}
}

func (u Uniform) Sample(src rand.Source) float64 { return u.dist(src).Rand() }

func (u Uniform) Quantile(p float64) float64 { return u.dist(nil).Quantile(p) }

func (u Uniform) Mean() float64 { return (u.Low + u.High) / 2 }

func (u Uniform) GaussPoints(n int) ([]float64, []float64) {
	nodes := make([]float64, n)
	weights := make([]float64, n)
	quad.Legendre{}.FixedLocations(nodes, weights, u.Low, u.High)
	// Legendre weights integrate against weight 1 on [low, high]; divide by
	// the interval length to integrate against the uniform density.
	for i := range weights {
		weights[i] /= u.High - u.Low
	}
	return nodes, weights
}

func (u Uniform) String() string {
	return fmt.Sprintf("Uniform(%v, %v)", u.Low, u.High)
}

type Normal struct {
	Mu    float64
	Sigma float64
}

var _ Distribution = Normal{}

func (n Normal) dist(src rand.Source) distuv.Normal {
	return distuv.Normal{Mu: n.Mu, Sigma: n.Sigma, Src: src}
}

func (n Normal) Sample(src rand.Source) float64 { return n.dist(src).Rand() }

func (n Normal) Quantile(p float64) float64 { return n.dist(nil).Quantile(p) }

func (n Normal) Mean() float64 { return n.Mu }

func (n Normal) GaussPoints(count int) ([]float64, []float64) {
	nodes := make([]float64, count)
	weights := make([]float64, count)
	quad.Hermite{}.FixedLocations(nodes, weights, math.Inf(-1), math.Inf(1))
	// Hermite nodes integrate against exp(-x^2); substitute
	// x = mu + sqrt(2)*sigma*t to integrate against the normal density.
	for i := range nodes {
		nodes[i] = n.Mu + math.Sqrt2*n.Sigma*nodes[i]
		weights[i] /= math.Sqrt(math.Pi)
	}
	return nodes, weights
}

func (n Normal) String() string {
	return fmt.Sprintf("Normal(%v, %v)", n.Mu, n.Sigma)
}
