package encode

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Decoder extracts quantity-of-interest columns from a completed run
// directory. Each column maps to the values it took over the output rows; a
// scalar output is a column of length one.
type Decoder interface {
	Decode(dir string) (map[string][]float64, error)
}

// SimpleCSV reads TargetFilename from the run directory and extracts the named
// columns. The first row must be a header naming every output column.
type SimpleCSV struct {
	TargetFilename string
	OutputColumns  []string
}

var _ Decoder = (*SimpleCSV)(nil)

func (d *SimpleCSV) Decode(dir string) (map[string][]float64, error) {
	path := filepath.Join(dir, d.TargetFilename)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open output %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header from %s: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	columns := make(map[string][]float64, len(d.OutputColumns))
	for _, name := range d.OutputColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("output column %q not found in %s (header: %v)", name, path, header)
		}
		columns[name] = nil
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row from %s: %w", path, err)
		}
		for _, name := range d.OutputColumns {
			cell := row[index[name]]
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("output column %q in %s: cannot parse %q as float: %w", name, path, cell, err)
			}
			columns[name] = append(columns[name], value)
		}
	}

	for _, name := range d.OutputColumns {
		if len(columns[name]) == 0 {
			return nil, fmt.Errorf("output %s contains no data rows", path)
		}
	}

	return columns, nil
}

// JSONDecoder reads a single JSON object of numeric fields (scalars or arrays)
// from TargetFilename and extracts the named keys.
type JSONDecoder struct {
	TargetFilename string
	OutputColumns  []string
}

var _ Decoder = (*JSONDecoder)(nil)

func (d *JSONDecoder) Decode(dir string) (map[string][]float64, error) {
	path := filepath.Join(dir, d.TargetFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read output %s: %w", path, err)
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to parse json output %s: %w", path, err)
	}

	columns := make(map[string][]float64, len(d.OutputColumns))
	for _, name := range d.OutputColumns {
		field, ok := record[name]
		if !ok {
			return nil, fmt.Errorf("output field %q not found in %s", name, path)
		}

		var values []float64
		if err := json.Unmarshal(field, &values); err != nil {
			var scalar float64
			if err := json.Unmarshal(field, &scalar); err != nil {
				return nil, fmt.Errorf("output field %q in %s is not numeric: %w", name, path, err)
			}
			values = []float64{scalar}
		}
		columns[name] = values
	}

	return columns, nil
}
