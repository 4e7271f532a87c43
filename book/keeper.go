package book

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perpdesk/perpdesk/hl"
)

// Keeper owns the most recent aggregated snapshot for one coin. Each book
// message replaces the snapshot wholesale; readers get copies.
type Keeper struct {
	mu         sync.RWMutex
	resolution decimal.Decimal
	unit       Unit
	snap       Snapshot
	coin       string
	updatedAt  time.Time
	seen       bool
}

// NewKeeper creates a Keeper aggregating at the given resolution and unit.
func NewKeeper(resolution decimal.Decimal, unit Unit) (*Keeper, error) {
	if resolution.Sign() <= 0 {
		return nil, ErrInvalidResolution
	}
	return &Keeper{resolution: resolution, unit: unit}, nil
}

// Apply aggregates a book update and stores the result.
func (k *Keeper) Apply(update hl.BookUpdate) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	snap, err := Aggregate(update.Bids, update.Asks, k.resolution, k.unit)
	if err != nil {
		return err
	}
	k.snap = snap
	k.coin = update.Coin
	k.updatedAt = update.Time
	k.seen = true
	return nil
}

// SetResolution switches the bin resolution for subsequent updates. The
// stored snapshot is left as-is; it gets replaced by the next book message.
func (k *Keeper) SetResolution(resolution decimal.Decimal) error {
	if resolution.Sign() <= 0 {
		return ErrInvalidResolution
	}
	k.mu.Lock()
	k.resolution = resolution
	k.mu.Unlock()
	return nil
}

// SetUnit switches the depth denomination for subsequent updates.
func (k *Keeper) SetUnit(unit Unit) {
	k.mu.Lock()
	k.unit = unit
	k.mu.Unlock()
}

// Snapshot returns a copy of the latest aggregated view. ok is false until
// the first update arrives.
func (k *Keeper) Snapshot() (snap Snapshot, coin string, ok bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.seen {
		return Snapshot{}, "", false
	}
	out := k.snap
	out.Bids = append([]Row(nil), k.snap.Bids...)
	out.Asks = append([]Row(nil), k.snap.Asks...)
	return out, k.coin, true
}

// UpdatedAt returns the exchange timestamp of the latest snapshot.
func (k *Keeper) UpdatedAt() time.Time {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.updatedAt
}
