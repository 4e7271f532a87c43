package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/perpdesk/perpdesk/book"
	"github.com/perpdesk/perpdesk/cmd/perpdesk/internal/config"
	"github.com/perpdesk/perpdesk/hl"
	"github.com/perpdesk/perpdesk/hl/ws"
	"github.com/perpdesk/perpdesk/internal/api"
	"github.com/perpdesk/perpdesk/internal/logutil"
	"github.com/perpdesk/perpdesk/orders"
	"github.com/perpdesk/perpdesk/ratelimit"
	"github.com/perpdesk/perpdesk/tradefeed"
	"github.com/perpdesk/perpdesk/universe"
)

// App wires the stream client, the per-topic state owners, the signing
// pipeline and the state API together.
type App struct {
	Config config.AppConfig
	Logger *slog.Logger

	Stream   *ws.Client
	Book     *book.Keeper
	Trades   *tradefeed.Buffer
	Universe *universe.Universe
	Pipeline *orders.Pipeline

	server *http.Server

	mu        sync.RWMutex
	assetCtx  *hl.AssetCtxUpdate
	lastOrder *orders.Result
}

// NewApp initializes everything but does not start consuming; call Run.
func NewApp(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logutil.LoggerFromContext(ctx)
	}

	resolution, err := cfg.ParseResolution()
	if err != nil {
		return nil, err
	}
	unit, err := cfg.ParseDepthUnit()
	if err != nil {
		return nil, err
	}

	keeper, err := book.NewKeeper(resolution, unit)
	if err != nil {
		return nil, err
	}

	httpClient := ratelimit.NewClient(ratelimit.Config{Logger: logger})

	uni, err := universe.Fetch(ctx, httpClient, cfg.APIURL+"/info")
	if err != nil {
		return nil, fmt.Errorf("fetching asset universe: %w", err)
	}
	if _, err := uni.AssetIndex(cfg.Symbol); err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Book:     keeper,
		Trades:   tradefeed.New(),
		Universe: uni,
	}

	if key := strings.TrimSpace(cfg.PrivateKey); key != "" {
		wallet, err := orders.NewLocalWallet(key)
		if err != nil {
			return nil, err
		}
		pipeline, err := orders.NewPipeline(orders.Config{
			Universe:    uni,
			Signer:      wallet,
			Client:      httpClient,
			ExchangeURL: cfg.APIURL + "/exchange",
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		a.Pipeline = pipeline
		logger.Info("order submission enabled", slog.String("wallet", wallet.Address().Hex()))
	} else {
		logger.Info("no signing key configured, running read-only")
	}

	subs := []hl.Subscription{
		{Type: hl.ChannelL2Book, Coin: cfg.Symbol},
		{Type: hl.ChannelTrades, Coin: cfg.Symbol},
		{Type: hl.ChannelActiveAssetCtx, Coin: cfg.Symbol},
	}
	a.Stream = ws.Dial(ctx, cfg.WSURL, subs, ws.WithLogger(logger))

	handler := api.NewHandler(api.Config{
		Book:      a.Book,
		Trades:    a.Trades,
		Stream:    a.Stream,
		LastOrder: a.LastOrder,
		Logger:    logger,
	})
	a.server = &http.Server{Addr: cfg.HTTPListen, Handler: handler}

	return a, nil
}

// Run consumes the stream and serves the state API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.consume(ctx)
	})

	group.Go(func() error {
		a.Logger.Info("state API listening", slog.String("addr", a.Config.HTTPListen))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
		return a.Stream.Close()
	})

	return group.Wait()
}

// consume routes inbound messages by channel tag to their state owners.
func (a *App) consume(ctx context.Context) error {
	for msg := range a.Stream.Messages() {
		switch m := msg.(type) {
		case hl.BookUpdate:
			if err := a.Book.Apply(m); err != nil {
				a.Logger.Warn("book update rejected", slog.String("error", err.Error()))
			}
		case hl.TradeUpdate:
			a.Trades.Append(m.Trades...)
		case hl.AssetCtxUpdate:
			a.setAssetCtx(m)
		case hl.UserEvent:
			a.Logger.Info("user event", slog.String("data", string(m.Data)))
		}
	}
	return ctx.Err()
}

// SubmitOrder runs the signing pipeline and records the result for the
// state surface.
func (a *App) SubmitOrder(ctx context.Context, req orders.Request) (*orders.Result, error) {
	if a.Pipeline == nil {
		return nil, errors.New("order submission is disabled: no signing key configured")
	}
	result, err := a.Pipeline.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.lastOrder = result
	a.mu.Unlock()
	return result, nil
}

// LastOrder returns the most recent submission result, if any.
func (a *App) LastOrder() *orders.Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastOrder
}

// AssetCtx returns the latest per-asset statistics, if seen.
func (a *App) AssetCtx() *hl.AssetCtxUpdate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.assetCtx
}

func (a *App) setAssetCtx(ctx hl.AssetCtxUpdate) {
	a.mu.Lock()
	a.assetCtx = &ctx
	a.mu.Unlock()
}
