package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	valid := map[string]Amount{
		"0":       0,
		"12":      1200,
		"12.5":    1250,
		"12.05":   1205,
		"1000.99": 100099,
	}
	for in, want := range valid {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "-1", "+3", "1.234", "1.", ".5", "abc", "1,00"} {
		_, err := ParseAmount(in)
		assert.Error(t, err, in)
	}
}

func TestAmountJSON(t *testing.T) {
	var v struct {
		A Amount  `json:"a"`
		B *Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 99.9, "b": "0.07"}`), &v))
	assert.Equal(t, Amount(9990), v.A)
	require.NotNil(t, v.B)
	assert.Equal(t, Amount(7), *v.B)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": "99.90", "b": "0.07"}`, string(out))
}
