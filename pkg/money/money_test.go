package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Amount
	}{
		{"12", 1200},
		{"0.70", 70},
		{"0.1", 10},
		{".5", 50},
		{"-0.5", -50},
		{"+3.25", 325},
		{"1.005", 101},
		{"1.004", 100},
		{"1e3", 100000},
		{"2.5E-1", 25},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"", "abc", "1.2.3", "-", "1,50", "99999999999999999999"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "0.00", Amount(0).String())
	assert.Equal(t, "0.07", Amount(7).String())
	assert.Equal(t, "1750.00", FromMajor(1750).String())
	assert.Equal(t, "-0.50", Amount(-50).String())
}

func TestTenthsAddUpExactly(t *testing.T) {
	var total Amount
	for _, v := range []float64{0.70, 0.10, 0.10, 0.10} {
		total += FromMajor(v)
	}
	assert.Equal(t, FromMajor(1.00), total)
	assert.Equal(t, Amount(30), Amount(10).Times(3))
	assert.Equal(t, Amount(333), Amount(1333).Times(0.25))
}

func TestJSON(t *testing.T) {
	var body struct {
		Amount Amount  `json:"amount"`
		Quoted Amount  `json:"quoted"`
		Empty  *Amount `json:"empty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":0.1,"quoted":"19.99","empty":null}`), &body))
	assert.Equal(t, Amount(10), body.Amount)
	assert.Equal(t, Amount(1999), body.Quoted)
	assert.Nil(t, body.Empty)

	out, err := json.Marshal(map[string]Amount{"total": 1999})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":19.99}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"amount":"ten"}`), &body))
}
