package analysis

import (
	"fmt"

	"uqflow/internal/params"
)

// Row is one collated run: the sampled inputs and the decoded outputs. An
// output column holds the values a quantity of interest took over the run's
// output rows; a scalar quantity is a column of length one.
type Row struct {
	RunID   string
	Inputs  params.Point
	Outputs map[string][]float64
}

// DataFrame is the collated result set of a campaign, one row per completed
// run, in design order.
type DataFrame struct {
	Rows []Row
}

// Column gathers one output column across all rows. Every row must carry the
// column with a consistent length.
func (df *DataFrame) Column(name string) ([][]float64, error) {
	if len(df.Rows) == 0 {
		return nil, fmt.Errorf("no rows in data frame")
	}

	values := make([][]float64, len(df.Rows))
	width := -1
	for i, row := range df.Rows {
		col, ok := row.Outputs[name]
		if !ok {
			return nil, fmt.Errorf("run %s has no output column %q", row.RunID, name)
		}
		if width == -1 {
			width = len(col)
		} else if len(col) != width {
			return nil, fmt.Errorf("run %s output column %q has %d values, expected %d", row.RunID, name, len(col), width)
		}
		values[i] = col
	}
	return values, nil
}

// Element is a single analysis step applied to a campaign's collated results.
type Element interface {
	Name() string
	Analyse(df *DataFrame) (*Results, error)
}
