package money

import (
	"sort"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Sum adds all values exactly
func Sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Min returns the smallest value. ok is false for an empty slice.
func Min(values []decimal.Decimal) (decimal.Decimal, bool) {
	if len(values) == 0 {
		return decimal.Zero, false
	}
	return decimal.Min(values[0], values[1:]...), true
}

// Max returns the largest value. ok is false for an empty slice.
func Max(values []decimal.Decimal) (decimal.Decimal, bool) {
	if len(values) == 0 {
		return decimal.Zero, false
	}
	return decimal.Max(values[0], values[1:]...), true
}

// Median returns the middle value of the sorted input. For an even count the
// mean of the two middle values is returned; halving a finite decimal is
// always exact.
func Median(values []decimal.Decimal) (decimal.Decimal, bool) {
	if len(values) == 0 {
		return decimal.Zero, false
	}

	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return sorted[mid-1].Add(sorted[mid]).Div(two), true
}

// Mean returns the arithmetic mean rounded to RateScale digits
func Mean(values []decimal.Decimal) (decimal.Decimal, bool) {
	if len(values) == 0 {
		return decimal.Zero, false
	}
	return Sum(values).DivRound(decimal.NewFromInt(int64(len(values))), RateScale), true
}
