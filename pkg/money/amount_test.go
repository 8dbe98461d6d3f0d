package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Exact(t *testing.T) {
	d, err := Parse("0.1")
	require.NoError(t, err)
	assert.Equal(t, "0.1", d.String())

	sum := d.Add(mustParse(t, "0.2"))
	assert.True(t, sum.Equal(mustParse(t, "0.3")), "decimal addition must be exact")
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyAmount)

	_, err = Parse("12,5")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseAmount_RejectsExtraPrecision(t *testing.T) {
	_, err := ParseAmount("1.0000001")
	assert.ErrorIs(t, err, ErrTooPrecise)

	d, err := ParseAmount("-99.999999")
	require.NoError(t, err)
	assert.Equal(t, "-99.999999", FormatAmount(d))

	// trailing zeros beyond the scale are not extra precision
	d, err = ParseAmount("5.00000000")
	require.NoError(t, err)
	assert.Equal(t, "5.000000", FormatAmount(d))
}

func TestParsePositive(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "100", want: "100.000000"},
		{in: "+100", want: "100.000000"},
		{in: " +0.000001 ", want: "0.000001"},
		{in: "0", wantErr: ErrAmountNotPositive},
		{in: "0.000000", wantErr: ErrAmountNotPositive},
		{in: "-5", wantErr: ErrAmountNotPositive},
		{in: "++5", wantErr: ErrInvalidAmount},
		{in: "+-5", wantErr: ErrInvalidAmount},
		{in: "0.0000001", wantErr: ErrTooPrecise},
		{in: "", wantErr: ErrEmptyAmount},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParsePositive(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatAmount(d))
		})
	}
}

func TestInvert_NeverDoubleNegates(t *testing.T) {
	assert.Equal(t, "-100", Invert("100"))
	assert.Equal(t, "-100", Invert("+100"))
	assert.Equal(t, "100", Invert("-100"))
	assert.Equal(t, "100.5", Invert(Invert("100.5")))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "10.00000000", FormatRate(decimal.NewFromInt(10)))
	assert.Equal(t, "36.51234500", FormatRate(mustParse(t, "36.512345")))
}

func mustParse(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := Parse(s)
	require.NoError(t, err)
	return d
}
