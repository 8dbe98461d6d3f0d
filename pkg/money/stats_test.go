package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decimals(t *testing.T, values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = mustParse(t, v)
	}
	return out
}

func TestSum_BalancesToZero(t *testing.T) {
	assert.True(t, Sum(decimals(t, "-100.000000", "100")).IsZero())
	assert.False(t, Sum(decimals(t, "-100.000000", "99.999999")).IsZero())
	assert.True(t, Sum(nil).IsZero())
}

func TestMinMax(t *testing.T) {
	values := decimals(t, "10.5", "10.0", "11.0")

	lo, ok := Min(values)
	require.True(t, ok)
	assert.Equal(t, "10.00000000", FormatRate(lo))

	hi, ok := Max(values)
	require.True(t, ok)
	assert.Equal(t, "11.00000000", FormatRate(hi))

	_, ok = Min(nil)
	assert.False(t, ok)
}

func TestMedian(t *testing.T) {
	m, ok := Median(decimals(t, "11.0", "10.0", "10.5"))
	require.True(t, ok)
	assert.Equal(t, "10.50000000", FormatRate(m))

	m, ok = Median(decimals(t, "1", "2", "3", "4"))
	require.True(t, ok)
	assert.Equal(t, "2.50000000", FormatRate(m))

	input := decimals(t, "3", "1", "2")
	_, _ = Median(input)
	assert.Equal(t, "3", input[0].String(), "median must not reorder its input")

	_, ok = Median(nil)
	assert.False(t, ok)
}

func TestMean(t *testing.T) {
	m, ok := Mean(decimals(t, "1", "2"))
	require.True(t, ok)
	assert.Equal(t, "1.50000000", FormatRate(m))
}
