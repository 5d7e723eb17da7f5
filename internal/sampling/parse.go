package sampling

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
)

// Vary expressions name the input distribution of a varied parameter in
// campaign definitions, e.g.
//
//	Uniform(0.025, 0.075)
//	Normal(20, 2)
//
// The grammar is a bare call: Ident "(" Number ("," Number)* ")".

var varyParser = participle.MustBuild[varyExpr]()

type varyExpr struct {
	Name string   `@Ident`
	Args []number `"(" @@ ( "," @@ )* ")"`
}

type number struct {
	Neg   bool    `@"-"?`
	Value float64 `@(Float | Int)`
}

func (n number) float() float64 {
	if n.Neg {
		return -n.Value
	}
	return n.Value
}

// ParseDistribution parses a vary expression into a Distribution.
func ParseDistribution(expr string) (Distribution, error) {
	parsed, err := varyParser.ParseString("", expr)
	if err != nil {
		return nil, fmt.Errorf("error parsing distribution %q: %w", expr, err)
	}

	args := make([]float64, len(parsed.Args))
	for i, arg := range parsed.Args {
		args[i] = arg.float()
	}

	switch parsed.Name {
	case "Uniform":
		if len(args) != 2 {
			return nil, fmt.Errorf("distribution %q: Uniform takes 2 arguments, got %d", expr, len(args))
		}
		if args[0] >= args[1] {
			return nil, fmt.Errorf("distribution %q: lower bound must be below upper bound", expr)
		}
		return Uniform{Low: args[0], High: args[1]}, nil
	case "Normal":
		if len(args) != 2 {
			return nil, fmt.Errorf("distribution %q: Normal takes 2 arguments, got %d", expr, len(args))
		}
		if args[1] <= 0 {
			return nil, fmt.Errorf("distribution %q: standard deviation must be positive", expr)
		}
		return Normal{Mu: args[0], Sigma: args[1]}, nil
	default:
		return nil, fmt.Errorf("distribution %q: unknown distribution %q", expr, parsed.Name)
	}
}

// ParseVary parses a map of parameter name to vary expression, as found in
// campaign definition files.
func ParseVary(exprs map[string]string) (map[string]Distribution, error) {
	vary := make(map[string]Distribution, len(exprs))
	for name, expr := range exprs {
		dist, err := ParseDistribution(expr)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		vary[name] = dist
	}
	return vary, nil
}
