package coinselect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slatewallet/slatewallet/pkg/coinselect"
)

type coin uint64

func (c coin) Value() uint64 { return uint64(c) }

func coins(values ...uint64) []coinselect.Coin {
	out := make([]coinselect.Coin, 0, len(values))
	for _, v := range values {
		out = append(out, coin(v))
	}
	return out
}

func TestFee(t *testing.T) {
	require.Equal(t, uint64(23_000_000), coinselect.Fee(1, 2, 1))
	require.Equal(t, uint64(12_500_000), coinselect.Fee(1, 1, 1))
	require.Equal(t, uint64(24_000_000), coinselect.Fee(3, 2, 1))

	// A transaction always pays for at least one kernel.
	require.Equal(t, coinselect.Fee(1, 1, 1), coinselect.Fee(1, 1, 0))
}

func TestSelectSmallestFirst(t *testing.T) {
	available := coins(5_000_000_000, 100_000_000, 40_000_000)

	selection, err := coinselect.Select(available, 50_000_000)
	require.NoError(t, err)

	// 40M + 100M covers 50M plus the two-input fee; the 5G output must
	// stay untouched.
	require.Len(t, selection.Coins, 2)
	require.Equal(t, uint64(40_000_000), selection.Coins[0].Value())
	require.Equal(t, uint64(100_000_000), selection.Coins[1].Value())
	require.Equal(t, coinselect.Fee(2, 2, 1), selection.Fee)
	require.Equal(t, uint64(140_000_000)-50_000_000-selection.Fee, selection.Change)
}

func TestSelectSingleCoin(t *testing.T) {
	selection, err := coinselect.Select(coins(10_000_000_000), 1_000_000_000)
	require.NoError(t, err)

	require.Len(t, selection.Coins, 1)
	require.Equal(t, coinselect.Fee(1, 2, 1), selection.Fee)
	require.Equal(t, uint64(10_000_000_000-1_000_000_000)-selection.Fee, selection.Change)
}

func TestSelectFeeGrowsWithInputs(t *testing.T) {
	// Many small outputs: adding inputs raises the fee, which in turn
	// demands more inputs. The selection must converge, not oscillate.
	many := make([]uint64, 8)
	for i := range many {
		many[i] = 100_000_000
	}
	available := coins(many...)

	target := uint64(500_000_000)
	selection, err := coinselect.Select(available, target)
	require.NoError(t, err)

	var sum uint64
	for _, c := range selection.Coins {
		sum += c.Value()
	}
	require.Equal(t, coinselect.Fee(len(selection.Coins), 2, 1), selection.Fee)
	require.Equal(t, sum, target+selection.Fee+selection.Change)
}

func TestSelectExactNoChange(t *testing.T) {
	target := uint64(1_000_000_000)
	exact := target + coinselect.Fee(1, 1, 1)

	selection, err := coinselect.Select(coins(exact), target)
	require.NoError(t, err)

	require.Len(t, selection.Coins, 1)
	require.Zero(t, selection.Change)
	require.Equal(t, coinselect.Fee(1, 1, 1), selection.Fee)
}

func TestSelectExactNoChangeTwoInputs(t *testing.T) {
	target := uint64(1_000_000_000)
	first := uint64(400_000_000)
	second := target + coinselect.Fee(2, 1, 1) - first

	selection, err := coinselect.Select(coins(first, second), target)
	require.NoError(t, err)

	require.Len(t, selection.Coins, 2)
	require.Zero(t, selection.Change)
	require.Equal(t, coinselect.Fee(2, 1, 1), selection.Fee)
}

func TestSelectInsufficientBalance(t *testing.T) {
	available := coins(100, 200, 1_000_000)

	_, err := coinselect.Select(available, 2_000_000)
	var insufficient *coinselect.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, uint64(1_000_300), insufficient.Have)
	require.Greater(t, insufficient.Need, uint64(2_000_000))
}

func TestSelectNothingAvailable(t *testing.T) {
	_, err := coinselect.Select(nil, 1)
	var insufficient *coinselect.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	require.Zero(t, insufficient.Have)
}
