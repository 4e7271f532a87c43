package hl

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Channel discriminates inbound stream messages.
type Channel string

const (
	ChannelL2Book           Channel = "l2Book"
	ChannelTrades           Channel = "trades"
	ChannelActiveAssetCtx   Channel = "activeAssetCtx"
	ChannelUserEvents       Channel = "userEvents"
	ChannelSubscriptionsAck Channel = "subscriptionResponse"
	ChannelPong             Channel = "pong"
)

var (
	// ErrUnknownChannel marks frames with a channel tag outside the closed
	// variant set.
	ErrUnknownChannel = errors.New("hl: unknown channel")
	// ErrMalformedPayload marks frames whose payload does not match the
	// schema for their channel.
	ErrMalformedPayload = errors.New("hl: malformed payload")
)

// Message is one parsed inbound frame. The concrete type is one of
// BookUpdate, TradeUpdate, AssetCtxUpdate, UserEvent or SubscriptionAck.
type Message interface {
	Channel() Channel
}

// BookUpdate is a full replacement of both sides of the book for a coin.
type BookUpdate struct {
	Coin string
	Time time.Time
	Bids []Level
	Asks []Level
}

func (BookUpdate) Channel() Channel { return ChannelL2Book }

// TradeUpdate carries one or more trades in feed delivery order.
type TradeUpdate struct {
	Trades []Trade
}

func (TradeUpdate) Channel() Channel { return ChannelTrades }

// AssetCtxUpdate carries per-asset market statistics.
type AssetCtxUpdate struct {
	Coin         string
	MarkPx       decimal.Decimal
	OraclePx     decimal.Decimal
	MidPx        decimal.Decimal
	Funding      decimal.Decimal
	OpenInterest decimal.Decimal
}

func (AssetCtxUpdate) Channel() Channel { return ChannelActiveAssetCtx }

// UserEvent carries an account-scoped event. The payload is kept raw; the
// caller decides how much of it to decode.
type UserEvent struct {
	Data json.RawMessage
}

func (UserEvent) Channel() Channel { return ChannelUserEvents }

// SubscriptionAck confirms a subscribe or unsubscribe request.
type SubscriptionAck struct {
	Data json.RawMessage
}

func (SubscriptionAck) Channel() Channel { return ChannelSubscriptionsAck }

type frame struct {
	Channel Channel         `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type wireBook struct {
	Coin   string    `json:"coin"`
	Time   int64     `json:"time"`
	Levels [][]Level `json:"levels"`
}

type wireAssetCtx struct {
	Coin string `json:"coin"`
	Ctx  struct {
		MarkPx       decimal.Decimal `json:"markPx"`
		OraclePx     decimal.Decimal `json:"oraclePx"`
		MidPx        decimal.Decimal `json:"midPx"`
		Funding      decimal.Decimal `json:"funding"`
		OpenInterest decimal.Decimal `json:"openInterest"`
	} `json:"ctx"`
}

// Parse decodes one raw frame into its tagged variant. Frames with an
// unknown channel or a payload that does not match the channel's schema are
// rejected; the stream client drops them without dying.
func Parse(raw []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch f.Channel {
	case ChannelL2Book:
		var w wireBook
		if err := json.Unmarshal(f.Data, &w); err != nil {
			return nil, fmt.Errorf("%w: l2Book: %v", ErrMalformedPayload, err)
		}
		if len(w.Levels) < 2 {
			return nil, fmt.Errorf("%w: l2Book: want 2 sides, got %d", ErrMalformedPayload, len(w.Levels))
		}
		return BookUpdate{
			Coin: w.Coin,
			Time: time.UnixMilli(w.Time),
			Bids: w.Levels[0],
			Asks: w.Levels[1],
		}, nil

	case ChannelTrades:
		// The feed sends either an array of trades or a single record.
		var trades []Trade
		if err := json.Unmarshal(f.Data, &trades); err != nil {
			var one Trade
			if err := json.Unmarshal(f.Data, &one); err != nil {
				return nil, fmt.Errorf("%w: trades: %v", ErrMalformedPayload, err)
			}
			trades = []Trade{one}
		}
		return TradeUpdate{Trades: trades}, nil

	case ChannelActiveAssetCtx:
		var w wireAssetCtx
		if err := json.Unmarshal(f.Data, &w); err != nil {
			return nil, fmt.Errorf("%w: activeAssetCtx: %v", ErrMalformedPayload, err)
		}
		return AssetCtxUpdate{
			Coin:         w.Coin,
			MarkPx:       w.Ctx.MarkPx,
			OraclePx:     w.Ctx.OraclePx,
			MidPx:        w.Ctx.MidPx,
			Funding:      w.Ctx.Funding,
			OpenInterest: w.Ctx.OpenInterest,
		}, nil

	case ChannelUserEvents:
		return UserEvent{Data: f.Data}, nil

	case ChannelSubscriptionsAck, ChannelPong:
		return SubscriptionAck{Data: f.Data}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, f.Channel)
}
