// Package mockhl is an in-process Hyperliquid test double: the info and
// exchange HTTP endpoints plus a websocket feed whose connections the test
// controls (push frames, drop connections, script rate limits).
package mockhl

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/perpdesk/perpdesk/hl"
	"github.com/perpdesk/perpdesk/universe"
)

// Server mimics the exchange. Create with New, stop with Close.
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu               sync.Mutex
	assets           []universe.Asset
	pending429       int
	exchangeStatus   int
	exchangeBody     string
	exchangeRequests []json.RawMessage
	exchangeAttempts int
	conns            []*websocket.Conn
	connCount        int
	received         [][]byte
}

// New starts a mock server with a default one-asset universe.
func New() *Server {
	s := &Server{
		assets: []universe.Asset{{Name: "BTC", SzDecimals: 5}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/exchange", s.handleExchange)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = httptest.NewServer(mux)
	return s
}

// Close shuts the server down, dropping any live websocket connections.
func (s *Server) Close() {
	s.DropConnections()
	s.httpServer.Close()
}

// URL is the base HTTP URL.
func (s *Server) URL() string { return s.httpServer.URL }

// InfoURL is the info endpoint.
func (s *Server) InfoURL() string { return s.httpServer.URL + "/info" }

// ExchangeURL is the exchange action endpoint.
func (s *Server) ExchangeURL() string { return s.httpServer.URL + "/exchange" }

// WSURL is the websocket endpoint.
func (s *Server) WSURL() string {
	return strings.Replace(s.httpServer.URL, "http", "ws", 1) + "/ws"
}

// SetUniverse replaces the asset table served by /info.
func (s *Server) SetUniverse(assets []universe.Asset) {
	s.mu.Lock()
	s.assets = append([]universe.Asset(nil), assets...)
	s.mu.Unlock()
}

// RateLimitNext makes the next n exchange requests answer 429.
func (s *Server) RateLimitNext(n int) {
	s.mu.Lock()
	s.pending429 = n
	s.mu.Unlock()
}

// FailExchangeWith forces a fixed status and body on exchange requests.
func (s *Server) FailExchangeWith(status int, body string) {
	s.mu.Lock()
	s.exchangeStatus = status
	s.exchangeBody = body
	s.mu.Unlock()
}

// ExchangeRequests returns the successfully handled exchange bodies.
func (s *Server) ExchangeRequests() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.exchangeRequests...)
}

// ExchangeAttempts counts all physical exchange requests, 429s included.
func (s *Server) ExchangeAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchangeAttempts
}

// Received returns every frame clients sent over the websocket.
func (s *Server) Received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.received))
	for i, b := range s.received {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

// Subscriptions decodes the subscribe frames received so far, in order.
func (s *Server) Subscriptions() []hl.Subscription {
	var subs []hl.Subscription
	for _, raw := range s.Received() {
		var frame struct {
			Method       string          `json:"method"`
			Subscription hl.Subscription `json:"subscription"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Method == "subscribe" {
			subs = append(subs, frame.Subscription)
		}
	}
	return subs
}

// ConnCount reports how many websocket connections were ever accepted.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connCount
}

// Push broadcasts a raw frame to all live websocket connections.
func (s *Server) Push(frame []byte) {
	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.conns...)
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
}

// PushBook broadcasts an l2Book frame.
func (s *Server) PushBook(coin string, timeMs int64, bids, asks []hl.Level) {
	frame, _ := json.Marshal(map[string]any{
		"channel": "l2Book",
		"data": map[string]any{
			"coin":   coin,
			"time":   timeMs,
			"levels": [][]hl.Level{bids, asks},
		},
	})
	s.Push(frame)
}

// PushTrades broadcasts a trades frame.
func (s *Server) PushTrades(trades []map[string]any) {
	frame, _ := json.Marshal(map[string]any{
		"channel": "trades",
		"data":    trades,
	})
	s.Push(frame)
}

// DropConnections closes every live websocket abruptly, forcing clients into
// their reconnect path.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case "meta":
		s.mu.Lock()
		assets := append([]universe.Asset(nil), s.assets...)
		s.mu.Unlock()
		writeJSON(w, map[string]any{"universe": assets})
	default:
		http.Error(w, "unsupported info type", http.StatusBadRequest)
	}
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.exchangeAttempts++
	if s.pending429 > 0 {
		s.pending429--
		s.mu.Unlock()
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	status, body := s.exchangeStatus, s.exchangeBody
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, body, status)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	var req struct {
		Action struct {
			Orders []struct {
				Sz string `json:"s"`
			} `json:"orders"`
		} `json:"action"`
		Signature struct {
			R string `json:"r"`
			S string `json:"s"`
		} `json:"signature"`
	}
	if err := json.Unmarshal(raw, &req); err != nil || len(req.Action.Orders) == 0 {
		http.Error(w, "invalid action", http.StatusBadRequest)
		return
	}
	if req.Signature.R == "" || req.Signature.S == "" {
		http.Error(w, "missing signature", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.exchangeRequests = append(s.exchangeRequests, raw)
	s.mu.Unlock()

	// Fill the full size immediately, the simplest happy path.
	writeJSON(w, map[string]any{
		"status": "ok",
		"response": map[string]any{
			"type": "order",
			"data": map[string]any{
				"statuses": []map[string]any{
					{"filled": map[string]any{
						"oid":     1,
						"totalSz": req.Action.Orders[0].Sz,
						"avgPx":   "50000",
					}},
				},
			},
		},
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.connCount++
	s.mu.Unlock()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, raw)
		s.mu.Unlock()

		ack, _ := json.Marshal(map[string]any{
			"channel": "subscriptionResponse",
			"data":    json.RawMessage(raw),
		})
		_ = conn.WriteMessage(websocket.TextMessage, ack)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
