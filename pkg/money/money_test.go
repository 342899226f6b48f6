package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTolerance(t *testing.T) {
	assert.True(t, WithinTolerance(10800, 10800))
	assert.True(t, WithinTolerance(10800, 10801))
	assert.True(t, WithinTolerance(10801, 10800))
	assert.False(t, WithinTolerance(10800, 10802))
	assert.False(t, WithinTolerance(10800, 10000))
}

func TestScaleFollowsISOMinorUnits(t *testing.T) {
	scale, err := Scale("USD")
	require.NoError(t, err)
	require.Equal(t, int32(2), scale)

	scale, err = Scale("JPY")
	require.NoError(t, err)
	require.Equal(t, int32(0), scale)

	_, err = Scale("ZZZ")
	require.Error(t, err)
}

func TestMajorMinorConversion(t *testing.T) {
	major, err := ToMajor(108000, "NGN")
	require.NoError(t, err)
	require.True(t, major.Equal(decimal.RequireFromString("1080.00")))

	minor, err := FromMajor(decimal.RequireFromString("150.005"), "USD")
	require.NoError(t, err)
	require.Equal(t, int64(15001), minor)
}

func TestFormatConvertsThroughRateTable(t *testing.T) {
	rates := RateTable{Base: "NGN", Rates: map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("0.0005"),
	}}

	same, err := Format(108000, "NGN", rates)
	require.NoError(t, err)
	require.Equal(t, "NGN 1,080.00", same)

	converted, err := Format(200000000, "usd", rates)
	require.NoError(t, err)
	require.Equal(t, "USD 1,000.00", converted)

	_, err = Format(100, "EUR", rates)
	require.Error(t, err)
}

func TestFormatIsDeterministic(t *testing.T) {
	rates := RateTable{Base: "USD"}
	first, err := Format(123456, "USD", rates)
	require.NoError(t, err)
	second, err := Format(123456, "USD", rates)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "USD 1,234.56", first)
}
