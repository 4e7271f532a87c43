package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/perpdesk/perpdesk/book"
	"github.com/perpdesk/perpdesk/hl"
	"github.com/perpdesk/perpdesk/hl/ws"
	"github.com/perpdesk/perpdesk/orderid"
	"github.com/perpdesk/perpdesk/orders"
)

type fakeBook struct {
	snap book.Snapshot
	coin string
	ok   bool
}

func (f fakeBook) Snapshot() (book.Snapshot, string, bool) { return f.snap, f.coin, f.ok }

type fakeTrades []hl.Trade

func (f fakeTrades) Trades() []hl.Trade { return f }

type fakeStream ws.State

func (f fakeStream) State() ws.State { return ws.State(f) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler_State(t *testing.T) {
	spread := decimal.RequireFromString("0.5")
	result := &orders.Result{
		OrderID:  orderid.New(0, 1700000000123, time.UnixMilli(1700000000123)),
		Nonce:    1700000000123,
		Response: orders.ExchangeResponse{Status: "ok"},
	}

	h := NewHandler(Config{
		Book: fakeBook{
			snap: book.Snapshot{
				Bids:      []book.Row{{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(2)}},
				Asks:      []book.Row{{Price: decimal.RequireFromString("100.5"), Size: decimal.NewFromInt(1)}},
				Spread:    spread,
				SpreadPct: decimal.RequireFromString("0.498"),
				HasSpread: true,
			},
			coin: "BTC",
			ok:   true,
		},
		Trades: fakeTrades{{
			Px:   decimal.NewFromInt(100),
			Sz:   decimal.NewFromInt(1),
			Side: hl.TradeSideBuy,
			Time: time.UnixMilli(1700000000000),
		}},
		Stream:    fakeStream(ws.StateOpen),
		LastOrder: func() *orders.Result { return result },
	})

	rec := get(t, h, "/state")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var state struct {
		Connection string `json:"connection"`
		Book       *struct {
			Coin   string            `json:"coin"`
			Bids   []json.RawMessage `json:"bids"`
			Asks   []json.RawMessage `json:"asks"`
			Spread *decimal.Decimal  `json:"spread"`
		} `json:"book"`
		Trades []struct {
			Side string `json:"side"`
		} `json:"trades"`
		LastOrder *struct {
			OrderID string `json:"orderId"`
			Nonce   uint64 `json:"nonce"`
			Status  string `json:"status"`
		} `json:"lastOrder"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))

	require.Equal(t, "open", state.Connection)
	require.NotNil(t, state.Book)
	require.Equal(t, "BTC", state.Book.Coin)
	require.Len(t, state.Book.Bids, 1)
	require.Len(t, state.Book.Asks, 1)
	require.NotNil(t, state.Book.Spread)
	require.True(t, state.Book.Spread.Equal(spread))
	require.Len(t, state.Trades, 1)
	require.Equal(t, "buy", state.Trades[0].Side)
	require.NotNil(t, state.LastOrder)
	require.Equal(t, result.OrderID.Hex(), state.LastOrder.OrderID)
	require.Equal(t, "ok", state.LastOrder.Status)
}

func TestHandler_StateBeforeFirstBook(t *testing.T) {
	h := NewHandler(Config{
		Book:   fakeBook{},
		Trades: fakeTrades{},
		Stream: fakeStream(ws.StateConnecting),
	})

	rec := get(t, h, "/state")
	require.Equal(t, http.StatusOK, rec.Code)
	// No book yet: the key is absent rather than an empty object, and the
	// trades array is present but empty.
	require.NotContains(t, rec.Body.String(), `"book"`)
	require.Contains(t, rec.Body.String(), `"trades":[]`)
	require.Contains(t, rec.Body.String(), `"connecting"`)
}

func TestHandler_Health(t *testing.T) {
	h := NewHandler(Config{
		Book:   fakeBook{},
		Trades: fakeTrades{},
		Stream: fakeStream(ws.StateOpen),
	})

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","connection":"open"}`, rec.Body.String())
}

func TestHandler_CORSPreflight(t *testing.T) {
	h := NewHandler(Config{
		Book:   fakeBook{},
		Trades: fakeTrades{},
		Stream: fakeStream(ws.StateOpen),
	})

	req := httptest.NewRequest(http.MethodOptions, "/state", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
