// Package book turns raw two-sided level snapshots into a depth-binned,
// cumulative-volume view. Aggregation is a pure recomputation: every inbound
// snapshot replaces all prior state, there is no delta path.
package book

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/perpdesk/perpdesk/hl"
)

// MaxDepth caps the number of displayed bins per side.
const MaxDepth = 20

// ErrInvalidResolution rejects non-positive bin resolutions.
var ErrInvalidResolution = errors.New("book: resolution must be positive")

// Unit selects the denomination of cumulative depth.
type Unit int

const (
	// UnitAsset accumulates raw sizes.
	UnitAsset Unit = iota
	// UnitNotional accumulates price times size.
	UnitNotional
)

// Row is one aggregated bin with its running depth totals.
type Row struct {
	Price decimal.Decimal
	Size  decimal.Decimal
	// Cumulative is the running total in the chosen unit, summed from the
	// near-spread end outward.
	Cumulative decimal.Decimal
	// DepthPct is Cumulative normalized against the side total, 0-100.
	DepthPct decimal.Decimal
}

// Snapshot is the aggregated view of one book message. Bids are sorted
// descending and asks ascending, so index 0 of each side is nearest the
// spread.
type Snapshot struct {
	Bids []Row
	Asks []Row
	// Spread and SpreadPct are only meaningful when HasSpread is set, which
	// requires both sides to be non-empty.
	Spread    decimal.Decimal
	SpreadPct decimal.Decimal
	HasSpread bool
}

var oneHundred = decimal.NewFromInt(100)

// Aggregate bins both sides at the given resolution, sums sizes per bin,
// sorts, truncates to MaxDepth and annotates rows with cumulative depth in
// the chosen unit.
func Aggregate(bids, asks []hl.Level, resolution decimal.Decimal, unit Unit) (Snapshot, error) {
	if resolution.Sign() <= 0 {
		return Snapshot{}, ErrInvalidResolution
	}

	snap := Snapshot{
		Bids: binSide(bids, resolution, true, unit),
		Asks: binSide(asks, resolution, false, unit),
	}

	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		bestBid := snap.Bids[0].Price
		bestAsk := snap.Asks[0].Price
		snap.Spread = bestAsk.Sub(bestBid)
		snap.HasSpread = true
		if bestAsk.Sign() != 0 {
			snap.SpreadPct = snap.Spread.Div(bestAsk).Mul(oneHundred)
		}
	}

	return snap, nil
}

// binSide groups levels into resolution-sized buckets. The bin key is
// floor(price/resolution)*resolution; sizes landing in the same bin are
// summed. Zero-size bins are retained: sizes may legitimately be zero during
// transient updates.
func binSide(levels []hl.Level, resolution decimal.Decimal, descending bool, unit Unit) []Row {
	if len(levels) == 0 {
		return nil
	}

	bins := make(map[string]*Row, len(levels))
	for _, level := range levels {
		price := level.Px.Div(resolution).Floor().Mul(resolution)
		key := price.String()
		if row, ok := bins[key]; ok {
			row.Size = row.Size.Add(level.Sz)
			continue
		}
		bins[key] = &Row{Price: price, Size: level.Sz}
	}

	rows := make([]Row, 0, len(bins))
	for _, row := range bins {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if descending {
			return rows[i].Price.GreaterThan(rows[j].Price)
		}
		return rows[i].Price.LessThan(rows[j].Price)
	})
	if len(rows) > MaxDepth {
		rows = rows[:MaxDepth]
	}

	annotateDepth(rows, unit)
	return rows
}

func annotateDepth(rows []Row, unit Unit) {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(rowValue(row, unit))
	}

	cumulative := decimal.Zero
	for i := range rows {
		cumulative = cumulative.Add(rowValue(rows[i], unit))
		rows[i].Cumulative = cumulative
		if total.Sign() != 0 {
			rows[i].DepthPct = cumulative.Div(total).Mul(oneHundred)
		}
	}
}

func rowValue(row Row, unit Unit) decimal.Decimal {
	if unit == UnitNotional {
		return row.Price.Mul(row.Size)
	}
	return row.Size
}
