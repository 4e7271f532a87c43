// Package tradefeed keeps a bounded rolling log of the most recent trades,
// newest first. No deduplication is performed: redundant delivery across
// reconnects is accepted as-is and ages out of the ring.
package tradefeed

import (
	"sync"

	"github.com/perpdesk/perpdesk/hl"
)

// Capacity is the default ring size.
const Capacity = 50

// Buffer is a fixed-capacity newest-first trade ring.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	trades   []hl.Trade
}

// New creates a Buffer with the default capacity.
func New() *Buffer {
	return NewWithCapacity(Capacity)
}

// NewWithCapacity creates a Buffer holding at most n trades.
func NewWithCapacity(n int) *Buffer {
	if n <= 0 {
		n = Capacity
	}
	return &Buffer{capacity: n}
}

// Append prepends trades in their delivery order and evicts the oldest
// entries beyond capacity.
func (b *Buffer) Append(trades ...hl.Trade) {
	if len(trades) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	merged := make([]hl.Trade, 0, len(trades)+len(b.trades))
	merged = append(merged, trades...)
	merged = append(merged, b.trades...)
	if len(merged) > b.capacity {
		merged = merged[:b.capacity]
	}
	b.trades = merged
}

// Trades returns a copy of the ring, newest first.
func (b *Buffer) Trades() []hl.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]hl.Trade(nil), b.trades...)
}

// Len reports the number of buffered trades.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.trades)
}
