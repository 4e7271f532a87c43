package book

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/perpdesk/perpdesk/hl"
)

func TestKeeper_ReplacesWholesale(t *testing.T) {
	k, err := NewKeeper(decimal.NewFromInt(1), UnitAsset)
	require.NoError(t, err)

	_, _, ok := k.Snapshot()
	require.False(t, ok, "snapshot before any update")

	first := hl.BookUpdate{
		Coin: "BTC",
		Time: time.UnixMilli(1000),
		Bids: levels("100.3", "1", "100.7", "2"),
		Asks: levels("101.5", "1"),
	}
	require.NoError(t, k.Apply(first))

	snap, coin, ok := k.Snapshot()
	require.True(t, ok)
	require.Equal(t, "BTC", coin)
	require.Len(t, snap.Bids, 1)
	require.True(t, snap.Bids[0].Size.Equal(decimal.NewFromInt(3)))

	// A later message replaces, never patches, the prior level set.
	second := hl.BookUpdate{
		Coin: "BTC",
		Time: time.UnixMilli(2000),
		Bids: levels("90", "5"),
		Asks: nil,
	}
	require.NoError(t, k.Apply(second))

	snap, _, ok = k.Snapshot()
	require.True(t, ok)
	require.Len(t, snap.Bids, 1)
	require.True(t, snap.Bids[0].Price.Equal(decimal.NewFromInt(90)))
	require.Empty(t, snap.Asks)
	require.False(t, snap.HasSpread)
	require.Equal(t, time.UnixMilli(2000), k.UpdatedAt())
}

func TestKeeper_SettingsChanges(t *testing.T) {
	k, err := NewKeeper(decimal.NewFromInt(1), UnitAsset)
	require.NoError(t, err)

	require.ErrorIs(t, k.SetResolution(decimal.Zero), ErrInvalidResolution)
	require.NoError(t, k.SetResolution(decimal.NewFromInt(10)))
	k.SetUnit(UnitNotional)

	update := hl.BookUpdate{
		Coin: "ETH",
		Bids: levels("101", "1", "108", "1"),
		Asks: levels("111", "1"),
	}
	require.NoError(t, k.Apply(update))

	snap, _, ok := k.Snapshot()
	require.True(t, ok)
	// Both bids collapse into the 100 bin at resolution 10.
	require.Len(t, snap.Bids, 1)
	require.True(t, snap.Bids[0].Price.Equal(decimal.NewFromInt(100)))
}

func TestKeeper_SnapshotIsACopy(t *testing.T) {
	k, err := NewKeeper(decimal.NewFromInt(1), UnitAsset)
	require.NoError(t, err)
	require.NoError(t, k.Apply(hl.BookUpdate{
		Coin: "BTC",
		Bids: levels("100", "1"),
		Asks: levels("101", "1"),
	}))

	snap, _, _ := k.Snapshot()
	snap.Bids[0].Size = decimal.NewFromInt(999)

	again, _, _ := k.Snapshot()
	require.True(t, again.Bids[0].Size.Equal(decimal.NewFromInt(1)))
}
