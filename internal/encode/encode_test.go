package encode_test

import (
	"os"
	"path/filepath"
	"testing"

	"uqflow/internal/encode"
	"uqflow/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGenericEncoder(t *testing.T) {
	dir := t.TempDir()
	template := writeFile(t, dir, "cooling.template",
		`{"T0": $temp_init, "kappa": $kappa, "t_env": $t_env, "out_file": "$out_file"}`)

	encoder := &encode.GenericEncoder{
		TemplateFname:  template,
		Delimiter:      "$",
		TargetFilename: "cooling_in.json",
	}

	runDir := t.TempDir()
	point := params.Point{
		"temp_init": 95.0,
		"kappa":     0.05,
		"t_env":     20.0,
		"out_file":  "output.csv",
	}
	require.NoError(t, encoder.Encode(point, runDir))

	data, err := os.ReadFile(filepath.Join(runDir, "cooling_in.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"T0": 95, "kappa": 0.05, "t_env": 20, "out_file": "output.csv"}`, string(data))
}

func TestGenericEncoderMissingParameter(t *testing.T) {
	dir := t.TempDir()
	template := writeFile(t, dir, "model.template", "rate = $rate")

	encoder := &encode.GenericEncoder{TemplateFname: template, TargetFilename: "model.in"}

	err := encoder.Encode(params.Point{"other": 1.0}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate")
}

func TestGenericEncoderCustomDelimiter(t *testing.T) {
	dir := t.TempDir()
	template := writeFile(t, dir, "model.template", "rate = @rate")

	encoder := &encode.GenericEncoder{TemplateFname: template, Delimiter: "@", TargetFilename: "model.in"}

	runDir := t.TempDir()
	require.NoError(t, encoder.Encode(params.Point{"rate": 2.5}, runDir))

	data, err := os.ReadFile(filepath.Join(runDir, "model.in"))
	require.NoError(t, err)
	assert.Equal(t, "rate = 2.5", string(data))
}

func TestSimpleCSVDecoder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "output.csv", "t,te\n0,95.0\n1,91.2\n2,88.1\n")

	decoder := &encode.SimpleCSV{TargetFilename: "output.csv", OutputColumns: []string{"te"}}

	columns, err := decoder.Decode(dir)
	require.NoError(t, err)
	assert.Equal(t, []float64{95.0, 91.2, 88.1}, columns["te"])
}

func TestSimpleCSVDecoderErrors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		decoder := &encode.SimpleCSV{TargetFilename: "output.csv", OutputColumns: []string{"te"}}
		_, err := decoder.Decode(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "output.csv", "t,temp\n0,95.0\n")
		decoder := &encode.SimpleCSV{TargetFilename: "output.csv", OutputColumns: []string{"te"}}
		_, err := decoder.Decode(dir)
		assert.Error(t, err)
	})

	t.Run("NonNumericCell", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "output.csv", "t,te\n0,hot\n")
		decoder := &encode.SimpleCSV{TargetFilename: "output.csv", OutputColumns: []string{"te"}}
		_, err := decoder.Decode(dir)
		assert.Error(t, err)
	})

	t.Run("NoRows", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "output.csv", "t,te\n")
		decoder := &encode.SimpleCSV{TargetFilename: "output.csv", OutputColumns: []string{"te"}}
		_, err := decoder.Decode(dir)
		assert.Error(t, err)
	})
}

func TestJSONDecoder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "result.json", `{"te": [95.0, 91.2], "final": 88.1}`)

	decoder := &encode.JSONDecoder{TargetFilename: "result.json", OutputColumns: []string{"te", "final"}}

	columns, err := decoder.Decode(dir)
	require.NoError(t, err)
	assert.Equal(t, []float64{95.0, 91.2}, columns["te"])
	assert.Equal(t, []float64{88.1}, columns["final"])

	t.Run("MissingField", func(t *testing.T) {
		decoder := &encode.JSONDecoder{TargetFilename: "result.json", OutputColumns: []string{"pressure"}}
		_, err := decoder.Decode(dir)
		assert.Error(t, err)
	})
}
