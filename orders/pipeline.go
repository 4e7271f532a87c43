// Package orders builds, signs and submits exchange order actions. A
// submission is a short pipeline: resolve the asset, validate the size,
// build the typed action, obtain a signature, split it, post the wire
// payload. Any step failing short-circuits the rest.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perpdesk/perpdesk/orderid"
	"github.com/perpdesk/perpdesk/ratelimit"
	"github.com/perpdesk/perpdesk/universe"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TimeInForce constrains order execution.
type TimeInForce string

const (
	// TifIoc is immediate-or-cancel, the market-order emulation the
	// exchange expects for price-placeholder orders.
	TifIoc TimeInForce = "Ioc"
	TifGtc TimeInForce = "Gtc"
	TifAlo TimeInForce = "Alo"
)

const groupingNA = "na"

var (
	// ErrInvalidSize rejects sizes that are not positive.
	ErrInvalidSize = errors.New("orders: size must be positive")
	// ErrSizePrecision rejects sizes with more decimal places than the
	// asset allows.
	ErrSizePrecision = fmt.Errorf("%w: too many decimal places", ErrInvalidSize)
)

// wireOrder is the order object shared by the signing payload and the wire
// action. Field names are the exchange's single-letter wire contract.
type wireOrder struct {
	Asset      int       `json:"a"`
	IsBuy      bool      `json:"b"`
	LimitPx    string    `json:"p"`
	Sz         string    `json:"s"`
	ReduceOnly bool      `json:"r"`
	Type       orderType `json:"t"`
}

type orderType struct {
	Limit limitType `json:"limit"`
}

type limitType struct {
	Tif string `json:"tif"`
}

type wireAction struct {
	Type     string      `json:"type"`
	Grouping string      `json:"grouping"`
	Orders   []wireOrder `json:"orders"`
}

type exchangeRequest struct {
	Action    wireAction `json:"action"`
	Nonce     uint64     `json:"nonce"`
	Signature Signature  `json:"signature"`
}

// ExchangeResponse is the exchange's reply, surfaced verbatim. Response is
// kept raw because its shape depends on Status.
type ExchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// OK reports whether the exchange accepted the action.
func (r ExchangeResponse) OK() bool { return r.Status == "ok" }

// OrderStatus is one entry of a successful order response.
type OrderStatus struct {
	Resting *RestingStatus `json:"resting,omitempty"`
	Filled  *FilledStatus  `json:"filled,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type RestingStatus struct {
	Oid uint64 `json:"oid"`
}

type FilledStatus struct {
	Oid     uint64 `json:"oid"`
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
}

type actionResponse struct {
	Type string `json:"type"`
	Data struct {
		Statuses []OrderStatus `json:"statuses"`
	} `json:"data"`
}

// OrderStatuses decodes the per-order statuses out of a successful response.
func (r ExchangeResponse) OrderStatuses() ([]OrderStatus, error) {
	if !r.OK() {
		return nil, fmt.Errorf("orders: exchange returned status %q: %s", r.Status, r.Response)
	}
	var action actionResponse
	if err := json.Unmarshal(r.Response, &action); err != nil {
		return nil, fmt.Errorf("orders: decode response: %w", err)
	}
	return action.Data.Statuses, nil
}

// Request describes one order submission.
type Request struct {
	Symbol      string
	Side        Side
	Size        decimal.Decimal
	TimeInForce TimeInForce // defaults to Ioc
	ReduceOnly  bool
}

// Result is what the pipeline hands back: the correlation id, the nonce the
// action was signed with and the exchange's verbatim response.
type Result struct {
	OrderID  orderid.ID
	Nonce    uint64
	Response ExchangeResponse
}

// Config wires a Pipeline.
type Config struct {
	Universe    *universe.Universe
	Signer      Signer
	Client      *ratelimit.Client
	ExchangeURL string
	Logger      *slog.Logger
	// Now overrides the nonce clock; nil means wall clock.
	Now func() time.Time
}

// Pipeline submits signed orders. Safe for concurrent use.
type Pipeline struct {
	universe    *universe.Universe
	signer      Signer
	client      *ratelimit.Client
	exchangeURL string
	logger      *slog.Logger
	now         func() time.Time
}

// NewPipeline creates a Pipeline from cfg.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Universe == nil {
		return nil, errors.New("orders: universe is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("orders: signer is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("orders: http client is required")
	}
	if cfg.ExchangeURL == "" {
		return nil, errors.New("orders: exchange url is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Pipeline{
		universe:    cfg.Universe,
		signer:      cfg.Signer,
		client:      cfg.Client,
		exchangeURL: cfg.ExchangeURL,
		logger:      cfg.Logger.WithGroup("orders"),
		now:         cfg.Now,
	}, nil
}

// Submit runs the full pipeline for req and surfaces the exchange response.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*Result, error) {
	asset, err := p.universe.Asset(req.Symbol)
	if err != nil {
		return nil, err
	}
	assetIndex, _ := p.universe.AssetIndex(req.Symbol)

	if err := validateSize(req.Size, asset.SzDecimals); err != nil {
		return nil, err
	}

	tif := req.TimeInForce
	if tif == "" {
		tif = TifIoc
	}

	// The nonce is wall-clock milliseconds at call time, which makes it
	// monotonically unique per wallet and lets the exchange reject replays.
	nonce := uint64(p.now().UnixMilli())
	order := wireOrder{
		Asset:      assetIndex,
		IsBuy:      req.Side == SideBuy,
		LimitPx:    "0",
		Sz:         req.Size.String(),
		ReduceOnly: req.ReduceOnly,
		Type:       orderType{Limit: limitType{Tif: string(tif)}},
	}

	id := orderid.New(uint32(assetIndex), nonce, p.now())
	logger := p.logger.With(
		slog.String("order_id", id.Hex()),
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.String("size", req.Size.String()),
	)

	sigBytes, err := p.signer.SignTypedData(ctx, orderTypedData(order, nonce))
	if err != nil {
		logger.Warn("signing failed", slog.String("error", err.Error()))
		return nil, &SignerError{Err: err}
	}

	sig, err := SplitSignature(sigBytes)
	if err != nil {
		return nil, err
	}

	body := exchangeRequest{
		Action: wireAction{
			Type:     "order",
			Grouping: groupingNA,
			Orders:   []wireOrder{order},
		},
		Nonce:     nonce,
		Signature: sig,
	}

	var resp ExchangeResponse
	if err := p.client.PostJSON(ctx, p.exchangeURL, body, &resp); err != nil {
		logger.Warn("submission failed", slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("order submitted", slog.String("status", resp.Status))
	return &Result{OrderID: id, Nonce: nonce, Response: resp}, nil
}

func validateSize(size decimal.Decimal, szDecimals int) error {
	if size.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSize, size)
	}
	if !size.Equal(size.Truncate(int32(szDecimals))) {
		return fmt.Errorf("%w: %s has more than %d", ErrSizePrecision, size, szDecimals)
	}
	return nil
}
