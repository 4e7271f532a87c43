// Package hl holds the Hyperliquid wire types shared by the stream client,
// the book aggregator and the order pipeline.
package hl

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Level is one raw price level of an l2Book snapshot. The exchange sends
// prices and sizes as decimal strings.
type Level struct {
	Px decimal.Decimal `json:"px"`
	Sz decimal.Decimal `json:"sz"`
}

// TradeSide is the aggressor side of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade is one record of the trades channel.
type Trade struct {
	Px   decimal.Decimal
	Sz   decimal.Decimal
	Side TradeSide
	Time time.Time
}

type wireTrade struct {
	Px   decimal.Decimal `json:"px"`
	Sz   decimal.Decimal `json:"sz"`
	Side string          `json:"side"`
	Time int64           `json:"time"`
}

// UnmarshalJSON normalizes the exchange's single-letter side codes ("B"/"A")
// as well as the long forms some feeds emit.
func (t *Trade) UnmarshalJSON(data []byte) error {
	var w wireTrade
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	side, err := parseTradeSide(w.Side)
	if err != nil {
		return err
	}

	*t = Trade{
		Px:   w.Px,
		Sz:   w.Sz,
		Side: side,
		Time: time.UnixMilli(w.Time),
	}
	return nil
}

func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTrade{
		Px:   t.Px,
		Sz:   t.Sz,
		Side: string(t.Side),
		Time: t.Time.UnixMilli(),
	})
}

func parseTradeSide(s string) (TradeSide, error) {
	switch s {
	case "B", "b", "buy":
		return TradeSideBuy, nil
	case "A", "a", "sell":
		return TradeSideSell, nil
	}
	return "", fmt.Errorf("unknown trade side %q", s)
}
