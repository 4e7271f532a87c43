// Package ws maintains one logical Hyperliquid websocket connection across
// transient disconnects. The client owns the socket on a single goroutine,
// replays the declared subscription set on every successful (re)connect and
// publishes parsed frames on a bounded channel.
package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/perpdesk/perpdesk/hl"
)

// State is the connectivity status of the logical connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	defaultBaseInterval = time.Second
	defaultMaxInterval  = 30 * time.Second
	defaultBuffer       = 256
)

// Option configures a Client before it starts dialing.
type Option func(*Client)

// WithLogger sets the parent logger. The client logs under the "hl"/"ws"
// groups.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.WithGroup("hl").WithGroup("ws")
		}
	}
}

// WithBackoff overrides the reconnect backoff bounds.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseInterval = base
		}
		if max > 0 {
			c.maxInterval = max
		}
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithBuffer overrides the delivery channel capacity.
func WithBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// Client is a resilient stream client for one endpoint. Create it with Dial;
// it keeps reconnecting until Close is called.
type Client struct {
	url          string
	dialer       *websocket.Dialer
	logger       *slog.Logger
	baseInterval time.Duration
	maxInterval  time.Duration
	buffer       int

	mu   sync.Mutex
	subs []hl.Subscription
	conn *websocket.Conn

	state   atomic.Int32
	dropped atomic.Uint64

	msgs chan hl.Message

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Dial starts the connection loop and returns immediately. The initial
// subscription set is sent, in declaration order, every time a connection
// opens. The returned client stays alive, reconnecting with exponential
// backoff, until Close.
func Dial(ctx context.Context, url string, subs []hl.Subscription, opts ...Option) *Client {
	runCtx, cancel := context.WithCancel(ctx)

	c := &Client{
		url:          url,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:       slog.Default().WithGroup("hl").WithGroup("ws"),
		baseInterval: defaultBaseInterval,
		maxInterval:  defaultMaxInterval,
		buffer:       defaultBuffer,
		subs:         append([]hl.Subscription(nil), subs...),
		ctx:          runCtx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.msgs = make(chan hl.Message, c.buffer)
	c.state.Store(int32(StateConnecting))

	go c.run()
	return c
}

// Messages returns the delivery channel. It is closed after Close, or when
// the context passed to Dial is cancelled.
func (c *Client) Messages() <-chan hl.Message { return c.msgs }

// State reports the current connectivity status.
func (c *Client) State() State { return State(c.state.Load()) }

// Dropped reports how many parsed frames were discarded because the delivery
// channel was full.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// Resubscribe replaces the active subscription set. When the connection is
// open, removed subscriptions are unsubscribed and the new set is re-issued
// immediately; otherwise the new set simply takes effect on the next connect.
func (c *Client) Resubscribe(subs []hl.Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := subtract(c.subs, subs)
	c.subs = append([]hl.Subscription(nil), subs...)

	if c.conn == nil || c.State() != StateOpen {
		return nil
	}
	for _, sub := range removed {
		frame, err := hl.UnsubscribeFrame(sub)
		if err != nil {
			return err
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return c.writeSubscriptionsLocked(c.conn)
}

// Close tears the client down: any pending reconnect timer is cancelled, the
// live socket (if present) is closed and no further deliveries happen. It is
// idempotent and safe to call from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	})
	<-c.done
	return nil
}

func (c *Client) run() {
	defer func() {
		c.state.Store(int32(StateClosed))
		close(c.msgs)
		close(c.done)
	}()

	attempt := 0
	for {
		if c.ctx.Err() != nil {
			return
		}

		opened := c.session()
		if c.ctx.Err() != nil {
			return
		}
		if opened {
			// A successful open resets the consecutive-failure counter.
			attempt = 0
		}

		delay := backoffDelay(c.baseInterval, c.maxInterval, attempt)
		attempt++
		c.logger.Warn("connection lost, scheduling reconnect",
			slog.String("url", c.url),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// session dials, subscribes and reads until the connection fails. It reports
// whether the connection reached the open state.
func (c *Client) session() bool {
	c.state.Store(int32(StateConnecting))

	conn, _, err := c.dialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		c.logger.Warn("dial failed", slog.String("url", c.url), slog.String("error", err.Error()))
		return false
	}

	c.mu.Lock()
	c.conn = conn
	err = c.writeSubscriptionsLocked(conn)
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn("subscription replay failed", slog.String("error", err.Error()))
		_ = conn.Close()
		c.detach(conn)
		return false
	}

	if c.ctx.Err() != nil {
		// Teardown raced the dial; drop the socket instead of reading from it.
		_ = conn.Close()
		c.detach(conn)
		return true
	}

	c.state.Store(int32(StateOpen))
	c.logger.Info("connected", slog.String("url", c.url))

	c.readLoop(conn)

	_ = conn.Close()
	c.detach(conn)
	return true
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("read failed", slog.String("error", err.Error()))
			}
			return
		}

		msg, err := hl.Parse(raw)
		if err != nil {
			// Malformed frames are dropped, never fatal.
			c.logger.Warn("dropping frame", slog.String("error", err.Error()))
			continue
		}
		if _, ok := msg.(hl.SubscriptionAck); ok {
			c.logger.Debug("subscription ack", slog.Any("data", msg))
			continue
		}

		select {
		case c.msgs <- msg:
		default:
			c.dropped.Add(1)
			c.logger.Warn("delivery channel full, dropping message",
				slog.String("channel", string(msg.Channel())),
				slog.Uint64("dropped_total", c.dropped.Load()),
			)
		}
	}
}

// writeSubscriptionsLocked sends the full current set, one frame per
// subscription, in declaration order. Caller holds c.mu.
func (c *Client) writeSubscriptionsLocked(conn *websocket.Conn) error {
	for _, sub := range c.subs {
		frame, err := hl.SubscribeFrame(sub)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

// backoffDelay computes min(base * 2^attempt, max).
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func subtract(from, exclude []hl.Subscription) []hl.Subscription {
	var out []hl.Subscription
	for _, sub := range from {
		keep := true
		for _, other := range exclude {
			if sub == other {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, sub)
		}
	}
	return out
}
