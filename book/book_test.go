package book

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/perpdesk/perpdesk/hl"
)

func level(px, sz string) hl.Level {
	return hl.Level{
		Px: decimal.RequireFromString(px),
		Sz: decimal.RequireFromString(sz),
	}
}

func levels(pairs ...string) []hl.Level {
	if len(pairs)%2 != 0 {
		panic("levels wants px/sz pairs")
	}
	out := make([]hl.Level, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, level(pairs[i], pairs[i+1]))
	}
	return out
}

func TestAggregate_BinsAndSums(t *testing.T) {
	// Two raw bids land in the same unit bin.
	bids := levels("100.3", "1", "100.7", "2")
	asks := levels("101.2", "0.5")

	snap, err := Aggregate(bids, asks, decimal.NewFromInt(1), UnitAsset)
	require.NoError(t, err)

	require.Len(t, snap.Bids, 1)
	require.True(t, snap.Bids[0].Price.Equal(decimal.NewFromInt(100)), "got %s", snap.Bids[0].Price)
	require.True(t, snap.Bids[0].Size.Equal(decimal.NewFromInt(3)), "got %s", snap.Bids[0].Size)

	require.Len(t, snap.Asks, 1)
	require.True(t, snap.Asks[0].Price.Equal(decimal.NewFromInt(101)))
}

func TestAggregate_BinPricesAreMultiplesAndConserveSize(t *testing.T) {
	cases := []struct {
		name       string
		resolution string
		levels     []hl.Level
	}{
		{"unit", "1", levels("99.1", "1", "99.9", "2", "100.0", "3", "104.5", "0.25")},
		{"coarse", "5", levels("99.1", "1", "99.9", "2", "100.0", "3", "104.5", "0.25")},
		{"fractional", "0.5", levels("10.26", "4", "10.74", "1", "10.76", "2")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := decimal.RequireFromString(tc.resolution)
			snap, err := Aggregate(tc.levels, nil, res, UnitAsset)
			require.NoError(t, err)

			inputTotal := decimal.Zero
			for _, l := range tc.levels {
				inputTotal = inputTotal.Add(l.Sz)
			}

			outputTotal := decimal.Zero
			for _, row := range snap.Bids {
				// Every bin price must sit on the resolution grid.
				require.True(t, row.Price.Mod(res).IsZero(),
					"price %s is not a multiple of %s", row.Price, res)
				outputTotal = outputTotal.Add(row.Size)
			}
			require.True(t, inputTotal.Equal(outputTotal),
				"size not conserved: in %s out %s", inputTotal, outputTotal)
		})
	}
}

func TestAggregate_SortOrderAndTruncation(t *testing.T) {
	var bids, asks []hl.Level
	for i := 0; i < 30; i++ {
		bids = append(bids, level(decimal.NewFromInt(int64(1000+i)).String(), "1"))
		asks = append(asks, level(decimal.NewFromInt(int64(2000+i)).String(), "1"))
	}

	snap, err := Aggregate(bids, asks, decimal.NewFromInt(1), UnitAsset)
	require.NoError(t, err)

	require.Len(t, snap.Bids, MaxDepth)
	require.Len(t, snap.Asks, MaxDepth)

	for i := 1; i < len(snap.Bids); i++ {
		require.True(t, snap.Bids[i].Price.LessThan(snap.Bids[i-1].Price),
			"bids not strictly descending at %d", i)
	}
	for i := 1; i < len(snap.Asks); i++ {
		require.True(t, snap.Asks[i].Price.GreaterThan(snap.Asks[i-1].Price),
			"asks not strictly ascending at %d", i)
	}

	// Truncation keeps the near-spread end: highest bids, lowest asks.
	require.True(t, snap.Bids[0].Price.Equal(decimal.NewFromInt(1029)))
	require.True(t, snap.Asks[0].Price.Equal(decimal.NewFromInt(2000)))
}

func TestAggregate_Spread(t *testing.T) {
	snap, err := Aggregate(
		levels("100.4", "1"),
		levels("101.1", "1"),
		decimal.RequireFromString("0.1"),
		UnitAsset,
	)
	require.NoError(t, err)
	require.True(t, snap.HasSpread)
	require.True(t, snap.Spread.Equal(decimal.RequireFromString("0.7")), "got %s", snap.Spread)
	require.False(t, snap.SpreadPct.IsZero())

	empty, err := Aggregate(levels("100.4", "1"), nil, decimal.NewFromInt(1), UnitAsset)
	require.NoError(t, err)
	require.False(t, empty.HasSpread)

	both, err := Aggregate(nil, nil, decimal.NewFromInt(1), UnitAsset)
	require.NoError(t, err)
	require.False(t, both.HasSpread)
	require.Empty(t, both.Bids)
	require.Empty(t, both.Asks)
}

func TestAggregate_DepthAsset(t *testing.T) {
	snap, err := Aggregate(
		levels("103", "1", "102", "2", "101", "1"),
		nil,
		decimal.NewFromInt(1),
		UnitAsset,
	)
	require.NoError(t, err)
	require.Len(t, snap.Bids, 3)

	require.True(t, snap.Bids[0].Cumulative.Equal(decimal.NewFromInt(1)))
	require.True(t, snap.Bids[1].Cumulative.Equal(decimal.NewFromInt(3)))
	require.True(t, snap.Bids[2].Cumulative.Equal(decimal.NewFromInt(4)))

	require.True(t, snap.Bids[0].DepthPct.Equal(decimal.NewFromInt(25)), "got %s", snap.Bids[0].DepthPct)
	require.True(t, snap.Bids[2].DepthPct.Equal(decimal.NewFromInt(100)), "got %s", snap.Bids[2].DepthPct)
}

func TestAggregate_DepthNotional(t *testing.T) {
	snap, err := Aggregate(
		levels("100", "1", "50", "2"),
		nil,
		decimal.NewFromInt(1),
		UnitNotional,
	)
	require.NoError(t, err)
	require.Len(t, snap.Bids, 2)

	// 100*1 then +50*2, total 200.
	require.True(t, snap.Bids[0].Cumulative.Equal(decimal.NewFromInt(100)))
	require.True(t, snap.Bids[1].Cumulative.Equal(decimal.NewFromInt(200)))
	require.True(t, snap.Bids[0].DepthPct.Equal(decimal.NewFromInt(50)))
	require.True(t, snap.Bids[1].DepthPct.Equal(decimal.NewFromInt(100)))
}

func TestAggregate_ZeroSizesRetained(t *testing.T) {
	snap, err := Aggregate(levels("100", "0", "101", "0"), nil, decimal.NewFromInt(1), UnitAsset)
	require.NoError(t, err)
	require.Len(t, snap.Bids, 2)
	for _, row := range snap.Bids {
		require.True(t, row.DepthPct.IsZero())
	}
}

func TestAggregate_InvalidResolution(t *testing.T) {
	for _, res := range []string{"0", "-1"} {
		_, err := Aggregate(levels("100", "1"), nil, decimal.RequireFromString(res), UnitAsset)
		require.ErrorIs(t, err, ErrInvalidResolution)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	bids := levels("100.3", "1", "100.7", "2", "99.5", "4")
	asks := levels("101.2", "0.5", "101.9", "3")
	res := decimal.NewFromInt(1)

	first, err := Aggregate(bids, asks, res, UnitNotional)
	require.NoError(t, err)
	second, err := Aggregate(bids, asks, res, UnitNotional)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, cmp.Comparer(decimal.Decimal.Equal)); diff != "" {
		t.Fatalf("re-applying the same snapshot diverged (-first +second):\n%s", diff)
	}
}
