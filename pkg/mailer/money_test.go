package mailer

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "nil", input: nil, want: "0"},
		{name: "empty string", input: "  ", want: "0"},
		{name: "int", input: 1500, want: "1500"},
		{name: "int64", input: int64(42), want: "42"},
		{name: "float", input: 99.95, want: "99.95"},
		{name: "string", input: "1500.50", want: "1500.5"},
		{name: "grouped string", input: "1,500.50", want: "1500.5"},
		{name: "json number", input: json.Number("12.3"), want: "12.3"},
		{name: "decimal", input: decimal.RequireFromString("7.07"), want: "7.07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAmount(tt.input)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParseAmount("twelve")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount([]int{1})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMoneyFormatter_Format(t *testing.T) {
	t.Parallel()

	f := NewMoneyFormatter("en-US", "MXN")

	out, err := f.Format(1500, "MXN")
	require.NoError(t, err)
	assert.Contains(t, out, "1,500.00")
	assert.Contains(t, out, "MXN")

	out, err = f.Format("10", "")
	require.NoError(t, err)
	assert.Contains(t, out, "10.00 MXN", "empty code uses the default currency")

	out, err = f.Format(3, "usd")
	require.NoError(t, err)
	assert.Contains(t, out, "3.00 USD")

	_, err = f.Format("oops", "MXN")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNewMoneyFormatter_Fallbacks(t *testing.T) {
	t.Parallel()

	f := NewMoneyFormatter("not a locale!!", "???")
	assert.Equal(t, "MXN", f.DefaultCurrency())
}
