package params

import (
	"fmt"
	"math"
)

const (
	TypeFloat   string = "float"
	TypeInteger string = "integer"
	TypeString  string = "string"
)

// Definition describes a single parameter of an application: its type, an
// optional valid range, and the default used when a sampler does not vary it.
type Definition struct {
	Type    string  `json:"type"`
	Min     float64 `json:"min,omitempty"`
	Max     float64 `json:"max,omitempty"`
	Default any     `json:"default"`
}

// Space is the full parameter space of an application, keyed by parameter name.
type Space map[string]Definition

func (s Space) Validate() error {
	for name, def := range s {
		switch def.Type {
		case TypeFloat, TypeInteger:
			if def.Min > def.Max {
				return fmt.Errorf("parameter %q: min %v is greater than max %v", name, def.Min, def.Max)
			}
			if def.Default != nil {
				v, ok := toFloat(def.Default)
				if !ok {
					return fmt.Errorf("parameter %q: default %v is not numeric", name, def.Default)
				}
				if v < def.Min || v > def.Max {
					return fmt.Errorf("parameter %q: default %v outside range [%v, %v]", name, v, def.Min, def.Max)
				}
			}
		case TypeString:
			if def.Default != nil {
				if _, ok := def.Default.(string); !ok {
					return fmt.Errorf("parameter %q: default %v is not a string", name, def.Default)
				}
			}
		default:
			return fmt.Errorf("parameter %q: unknown type %q", name, def.Type)
		}
	}
	return nil
}

// Point is a single sampled point: parameter name to value.
type Point map[string]any

// Complete validates sampled values against the space and fills in defaults
// for parameters the sampler did not vary. Unknown names are rejected.
func (s Space) Complete(sampled Point) (Point, error) {
	point := make(Point, len(s))
	for name, value := range sampled {
		def, ok := s[name]
		if !ok {
			return nil, fmt.Errorf("sampled parameter %q is not in the parameter space", name)
		}
		if def.Type != TypeString {
			v, ok := toFloat(value)
			if !ok {
				return nil, fmt.Errorf("sampled parameter %q: value %v is not numeric", name, value)
			}
			if v < def.Min || v > def.Max {
				return nil, fmt.Errorf("sampled parameter %q: value %v outside range [%v, %v]", name, v, def.Min, def.Max)
			}
			if def.Type == TypeInteger && v != math.Trunc(v) {
				return nil, fmt.Errorf("sampled parameter %q: value %v is not an integer", name, v)
			}
		}
		point[name] = value
	}
	for name, def := range s {
		if _, ok := point[name]; !ok {
			if def.Default == nil {
				return nil, fmt.Errorf("parameter %q has no sampled value and no default", name)
			}
			point[name] = def.Default
		}
	}
	return point, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
