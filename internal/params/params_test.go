package params_test

import (
	"testing"

	"uqflow/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coolingSpace() params.Space {
	return params.Space{
		"temp_init": {Type: params.TypeFloat, Min: 0.0, Max: 100.0, Default: 95.0},
		"kappa":     {Type: params.TypeFloat, Min: 0.0, Max: 0.1, Default: 0.025},
		"t_env":     {Type: params.TypeFloat, Min: 0.0, Max: 40.0, Default: 15.0},
		"out_file":  {Type: params.TypeString, Default: "output.csv"},
	}
}

func TestSpaceValidate(t *testing.T) {
	require.NoError(t, coolingSpace().Validate())

	t.Run("MinAboveMax", func(t *testing.T) {
		space := params.Space{"x": {Type: params.TypeFloat, Min: 2, Max: 1}}
		assert.Error(t, space.Validate())
	})

	t.Run("DefaultOutsideRange", func(t *testing.T) {
		space := params.Space{"x": {Type: params.TypeFloat, Min: 0, Max: 1, Default: 2.0}}
		assert.Error(t, space.Validate())
	})

	t.Run("UnknownType", func(t *testing.T) {
		space := params.Space{"x": {Type: "complex"}}
		assert.Error(t, space.Validate())
	})
}

func TestSpaceComplete(t *testing.T) {
	space := coolingSpace()

	point, err := space.Complete(params.Point{"kappa": 0.05, "t_env": 20.0})
	require.NoError(t, err)

	assert.Equal(t, 0.05, point["kappa"])
	assert.Equal(t, 20.0, point["t_env"])
	assert.Equal(t, 95.0, point["temp_init"])
	assert.Equal(t, "output.csv", point["out_file"])

	t.Run("UnknownName", func(t *testing.T) {
		_, err := space.Complete(params.Point{"viscosity": 1.0})
		assert.Error(t, err)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := space.Complete(params.Point{"kappa": 0.5})
		assert.Error(t, err)
	})

	t.Run("NonNumeric", func(t *testing.T) {
		_, err := space.Complete(params.Point{"kappa": "hot"})
		assert.Error(t, err)
	})

	t.Run("IntegerRequiresWholeValue", func(t *testing.T) {
		space := params.Space{"n": {Type: params.TypeInteger, Min: 0, Max: 10, Default: 1}}
		_, err := space.Complete(params.Point{"n": 2.5})
		assert.Error(t, err)

		point, err := space.Complete(params.Point{"n": 4.0})
		require.NoError(t, err)
		assert.Equal(t, 4.0, point["n"])
	})
}
