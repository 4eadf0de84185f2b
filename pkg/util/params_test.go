package util

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAsFloat(t *testing.T) {
	for _, in := range []any{2.5, float32(2.5), " 2.5 ", json.Number("2.5")} {
		f, err := GetAsFloat(in)
		require.NoError(t, err, "%#v", in)
		assert.Equal(t, 2.5, f)
	}
	f, err := GetAsFloat(3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	for _, in := range []any{nil, "near post", true, math.NaN(), "Inf"} {
		_, err := GetAsFloat(in)
		assert.Error(t, err, "%#v", in)
	}
}

func TestGetAsInteger(t *testing.T) {
	for _, in := range []any{6, int64(6), "6", 6.0, json.Number("6")} {
		n, err := GetAsInteger(in)
		require.NoError(t, err, "%#v", in)
		assert.Equal(t, 6, n)
	}
	for _, in := range []any{6.5, "six", nil, int64(math.MaxInt64), 1e12} {
		_, err := GetAsInteger(in)
		assert.Error(t, err, "%#v", in)
	}
}

func TestGetAsString(t *testing.T) {
	for in, want := range map[any]string{"Leeds": "Leeds", 7: "7", 1.5: "1.5", true: "true", int64(9): "9"} {
		s, err := GetAsString(in)
		require.NoError(t, err)
		assert.Equal(t, want, s)
	}
	_, err := GetAsString(nil)
	assert.Error(t, err)
}

func TestGetParam(t *testing.T) {
	args := map[string]any{"model": "league", "empty": nil}
	v, err := GetParam(args, "model")
	require.NoError(t, err)
	assert.Equal(t, "league", v)

	_, err = GetParam(args, "empty")
	assert.Error(t, err)
	_, err = GetParam(args, "home")
	assert.Error(t, err)
}
