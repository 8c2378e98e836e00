package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinAmountUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int64
	}{
		{"number", `42`, 42},
		{"float", `12.9`, 12},
		{"numeric string", `"30"`, 30},
		{"float string", `"7.5"`, 7},
		{"null", `null`, 0},
		{"garbage string", `"ten coins"`, 0},
		{"object", `{"value":5}`, 0},
		{"bool", `true`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var a CoinAmount
			require.NoError(t, json.Unmarshal([]byte(tc.in), &a))
			assert.Equal(t, tc.want, a.Int64())
		})
	}
}

func TestCoinAmountAbsentField(t *testing.T) {
	var payload struct {
		Coins CoinAmount `json:"coins"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &payload))
	assert.Equal(t, int64(0), payload.Coins.Int64())
}

func TestSubmissionStatusValid(t *testing.T) {
	assert.True(t, SubmissionPending.Valid())
	assert.True(t, SubmissionApproved.Valid())
	assert.True(t, SubmissionRejected.Valid())
	assert.False(t, SubmissionStatus("archived").Valid())

	assert.False(t, SubmissionPending.Terminal())
	assert.True(t, SubmissionApproved.Terminal())
	assert.True(t, SubmissionRejected.Terminal())
}
