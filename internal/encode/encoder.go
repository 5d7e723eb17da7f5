package encode

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"uqflow/internal/params"
)

// Encoder renders the input files for one run into the given directory.
type Encoder interface {
	Encode(point params.Point, dir string) error
}

// GenericEncoder substitutes delimited parameter names in a text template and
// writes the result to TargetFilename inside the run directory. With the
// default delimiter "$" a template reference looks like $kappa.
type GenericEncoder struct {
	TemplateFname  string
	Delimiter      string
	TargetFilename string
}

var _ Encoder = (*GenericEncoder)(nil)

func (e *GenericEncoder) Encode(point params.Point, dir string) error {
	delim := e.Delimiter
	if delim == "" {
		delim = "$"
	}

	raw, err := os.ReadFile(e.TemplateFname)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", e.TemplateFname, err)
	}

	ref := regexp.MustCompile(regexp.QuoteMeta(delim) + `([A-Za-z_][A-Za-z0-9_]*)`)

	var missing []string
	rendered := ref.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := string(match[len(delim):])
		value, ok := point[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return []byte(formatValue(value))
	})
	if len(missing) > 0 {
		return fmt.Errorf("template %s references parameters not in the sampled point: %v", e.TemplateFname, missing)
	}

	target := filepath.Join(dir, e.TargetFilename)
	if err := os.WriteFile(target, rendered, 0o644); err != nil {
		return fmt.Errorf("failed to write encoded input %s: %w", target, err)
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}
