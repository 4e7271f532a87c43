// Package api exposes the core's state as a small read-only JSON surface.
// The presentation shell polls it and renders whatever the core reports; no
// rendering concerns live here.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	"github.com/perpdesk/perpdesk/book"
	"github.com/perpdesk/perpdesk/hl"
	"github.com/perpdesk/perpdesk/hl/ws"
	"github.com/perpdesk/perpdesk/orders"
)

// BookSource yields the latest aggregated snapshot.
type BookSource interface {
	Snapshot() (book.Snapshot, string, bool)
}

// TradeSource yields the trade ring, newest first.
type TradeSource interface {
	Trades() []hl.Trade
}

// StreamSource reports connectivity.
type StreamSource interface {
	State() ws.State
}

// LastOrderSource yields the most recent submission result, if any.
type LastOrderSource func() *orders.Result

// Config wires a Handler.
type Config struct {
	Book      BookSource
	Trades    TradeSource
	Stream    StreamSource
	LastOrder LastOrderSource
	Logger    *slog.Logger
}

// NewHandler builds the CORS-wrapped HTTP handler serving /state and
// /health.
func NewHandler(cfg Config) http.Handler {
	h := &handler{
		book:      cfg.Book,
		trades:    cfg.Trades,
		stream:    cfg.Stream,
		lastOrder: cfg.LastOrder,
		logger:    cfg.Logger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.WithGroup("api")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", h.handleState)
	mux.HandleFunc("GET /health", h.handleHealth)

	return cors.AllowAll().Handler(mux)
}

type handler struct {
	book      BookSource
	trades    TradeSource
	stream    StreamSource
	lastOrder LastOrderSource
	logger    *slog.Logger
}

type levelPayload struct {
	Px       decimal.Decimal `json:"px"`
	Sz       decimal.Decimal `json:"sz"`
	Total    decimal.Decimal `json:"total"`
	DepthPct decimal.Decimal `json:"depthPct"`
}

type bookPayload struct {
	Coin      string           `json:"coin"`
	Bids      []levelPayload   `json:"bids"`
	Asks      []levelPayload   `json:"asks"`
	Spread    *decimal.Decimal `json:"spread,omitempty"`
	SpreadPct *decimal.Decimal `json:"spreadPct,omitempty"`
}

type tradePayload struct {
	Px   decimal.Decimal `json:"px"`
	Sz   decimal.Decimal `json:"sz"`
	Side hl.TradeSide    `json:"side"`
	Time time.Time       `json:"time"`
}

type orderPayload struct {
	OrderID string `json:"orderId"`
	Nonce   uint64 `json:"nonce"`
	Status  string `json:"status"`
}

type statePayload struct {
	Connection string         `json:"connection"`
	Book       *bookPayload   `json:"book,omitempty"`
	Trades     []tradePayload `json:"trades"`
	LastOrder  *orderPayload  `json:"lastOrder,omitempty"`
}

func (h *handler) handleState(w http.ResponseWriter, r *http.Request) {
	payload := statePayload{
		Connection: h.stream.State().String(),
		Trades:     []tradePayload{},
	}

	if snap, coin, ok := h.book.Snapshot(); ok {
		payload.Book = toBookPayload(snap, coin)
	}
	for _, trade := range h.trades.Trades() {
		payload.Trades = append(payload.Trades, tradePayload{
			Px:   trade.Px,
			Sz:   trade.Sz,
			Side: trade.Side,
			Time: trade.Time,
		})
	}
	if h.lastOrder != nil {
		if result := h.lastOrder(); result != nil {
			payload.LastOrder = &orderPayload{
				OrderID: result.OrderID.Hex(),
				Nonce:   result.Nonce,
				Status:  result.Response.Status,
			}
		}
	}

	writeJSON(w, h.logger, payload)
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, map[string]string{
		"status":     "ok",
		"connection": h.stream.State().String(),
	})
}

func toBookPayload(snap book.Snapshot, coin string) *bookPayload {
	out := &bookPayload{
		Coin: coin,
		Bids: make([]levelPayload, 0, len(snap.Bids)),
		Asks: make([]levelPayload, 0, len(snap.Asks)),
	}
	for _, row := range snap.Bids {
		out.Bids = append(out.Bids, toLevelPayload(row))
	}
	for _, row := range snap.Asks {
		out.Asks = append(out.Asks, toLevelPayload(row))
	}
	if snap.HasSpread {
		spread := snap.Spread
		spreadPct := snap.SpreadPct
		out.Spread = &spread
		out.SpreadPct = &spreadPct
	}
	return out
}

func toLevelPayload(row book.Row) levelPayload {
	return levelPayload{
		Px:       row.Price,
		Sz:       row.Size,
		Total:    row.Cumulative,
		DepthPct: row.DepthPct,
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("encode response", slog.String("error", err.Error()))
	}
}
