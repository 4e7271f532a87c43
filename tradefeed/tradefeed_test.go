package tradefeed

import (
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/perpdesk/perpdesk/hl"
)

func trade(px string, ms int64) hl.Trade {
	return hl.Trade{
		Px:   decimal.RequireFromString(px),
		Sz:   decimal.NewFromInt(1),
		Side: hl.TradeSideBuy,
		Time: time.UnixMilli(ms),
	}
}

func TestBuffer_NewestFirst(t *testing.T) {
	b := New()
	b.Append(trade("100", 1))
	b.Append(trade("101", 2), trade("102", 3))

	got := b.Trades()
	require.Len(t, got, 3)
	// A batch is prepended in its delivery order, ahead of older entries.
	require.True(t, got[0].Px.Equal(decimal.NewFromInt(101)))
	require.True(t, got[1].Px.Equal(decimal.NewFromInt(102)))
	require.True(t, got[2].Px.Equal(decimal.NewFromInt(100)))
}

func TestBuffer_EvictsBeyondCapacity(t *testing.T) {
	b := New()
	n := Capacity + 25
	for i := 0; i < n; i++ {
		b.Append(trade(strconv.Itoa(i), int64(i)))
	}

	got := b.Trades()
	require.Len(t, got, Capacity)
	// The 50 most recent appends survive, newest first.
	for i, tr := range got {
		want := int64(n - 1 - i)
		require.Equal(t, want, tr.Time.UnixMilli(), "index %d", i)
	}
	require.Equal(t, Capacity, b.Len())
}

func TestBuffer_KeepsDuplicates(t *testing.T) {
	// Redundant delivery is accepted as-is: at-least-once, no dedup.
	b := New()
	same := trade("100", 42)
	b.Append(same)
	b.Append(same)

	got := b.Trades()
	require.Len(t, got, 2)
	require.True(t, got[0].Px.Equal(got[1].Px))
	require.Equal(t, got[0].Time, got[1].Time)
}

func TestBuffer_TradesIsACopy(t *testing.T) {
	b := New()
	b.Append(trade("100", 1))

	got := b.Trades()
	got[0].Px = decimal.NewFromInt(999)

	again := b.Trades()
	require.True(t, again[0].Px.Equal(decimal.NewFromInt(100)))
}

func TestBuffer_EmptyAppend(t *testing.T) {
	b := New()
	b.Append()
	require.Zero(t, b.Len())
}
