package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/perpdesk/perpdesk/book"
)

const (
	// MainnetAPIURL is the default info/exchange endpoint base.
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	// MainnetWSURL is the default market-data stream endpoint.
	MainnetWSURL = "wss://api.hyperliquid.xyz/ws"
)

type AppConfig struct {
	Symbol     string
	APIURL     string
	WSURL      string
	PrivateKey string

	Resolution string
	DepthUnit  string

	HTTPListen    string
	LogLevel      string
	LogFormatJSON bool
}

func DefaultConfig() AppConfig {
	return AppConfig{
		Symbol:     "BTC",
		APIURL:     MainnetAPIURL,
		WSURL:      MainnetWSURL,
		Resolution: "1",
		DepthUnit:  "asset",
		HTTPListen: ":8080",
		LogLevel:   "info",
	}
}

// NewConfigFlagSet declares the flags against the provided struct but does not parse.
func NewConfigFlagSet(cfg *AppConfig) *pflag.FlagSet {
	fs := pflag.NewFlagSet("perpdesk", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVar(&cfg.Symbol, "symbol", cfg.Symbol, "Coin to stream and trade (env: PERPDESK_SYMBOL)")
	fs.StringVar(&cfg.APIURL, "hyperliquid-api-url", cfg.APIURL, "Hyperliquid API base URL (env: HYPERLIQUID_API_URL)")
	fs.StringVar(&cfg.WSURL, "hyperliquid-ws-url", cfg.WSURL, "Hyperliquid websocket URL (env: HYPERLIQUID_WS_URL)")
	fs.StringVar(&cfg.PrivateKey, "hyperliquid-private-key", cfg.PrivateKey, "Signing key; order submission is disabled when empty (env: HYPERLIQUID_PRIVATE_KEY)")
	fs.StringVar(&cfg.Resolution, "resolution", cfg.Resolution, "Book bin resolution (env: PERPDESK_RESOLUTION)")
	fs.StringVar(&cfg.DepthUnit, "depth-unit", cfg.DepthUnit, "Depth denomination: asset or usd (env: PERPDESK_DEPTH_UNIT)")
	fs.StringVar(&cfg.HTTPListen, "http-listen", cfg.HTTPListen, "State API listen address (env: PERPDESK_HTTP_LISTEN)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (env: PERPDESK_LOG_LEVEL)")
	fs.BoolVar(&cfg.LogFormatJSON, "log-json", cfg.LogFormatJSON, "Emit logs as JSON (env: PERPDESK_LOG_JSON)")

	return fs
}

// ApplyEnvDefaults inspects flags that were left unset and pulls from env.
func ApplyEnvDefaults(fs *pflag.FlagSet, cfg *AppConfig) error {
	flagSet := map[string]struct{}{}
	fs.Visit(func(f *pflag.Flag) { flagSet[f.Name] = struct{}{} })

	setString := func(name, envKey string, target *string) {
		if _, ok := flagSet[name]; ok {
			return
		}
		if v, ok := os.LookupEnv(envKey); ok && v != "" {
			*target = v
		}
	}
	setBool := func(name, envKey string, target *bool) {
		if _, ok := flagSet[name]; ok {
			return
		}
		if v, ok := os.LookupEnv(envKey); ok {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*target = parsed
			}
		}
	}

	setString("symbol", "PERPDESK_SYMBOL", &cfg.Symbol)
	setString("hyperliquid-api-url", "HYPERLIQUID_API_URL", &cfg.APIURL)
	setString("hyperliquid-ws-url", "HYPERLIQUID_WS_URL", &cfg.WSURL)
	setString("hyperliquid-private-key", "HYPERLIQUID_PRIVATE_KEY", &cfg.PrivateKey)
	setString("resolution", "PERPDESK_RESOLUTION", &cfg.Resolution)
	setString("depth-unit", "PERPDESK_DEPTH_UNIT", &cfg.DepthUnit)
	setString("http-listen", "PERPDESK_HTTP_LISTEN", &cfg.HTTPListen)
	setString("log-level", "PERPDESK_LOG_LEVEL", &cfg.LogLevel)
	setBool("log-json", "PERPDESK_LOG_JSON", &cfg.LogFormatJSON)

	return nil
}

func ValidateConfig(cfg AppConfig) error {
	var missing []string
	if strings.TrimSpace(cfg.Symbol) == "" {
		missing = append(missing, "symbol")
	}
	if cfg.APIURL == "" {
		missing = append(missing, "hyperliquid-api-url")
	}
	if cfg.WSURL == "" {
		missing = append(missing, "hyperliquid-ws-url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if _, err := cfg.ParseResolution(); err != nil {
		return err
	}
	if _, err := cfg.ParseDepthUnit(); err != nil {
		return err
	}
	return nil
}

// ParseResolution returns the bin resolution as a decimal.
func (cfg AppConfig) ParseResolution() (decimal.Decimal, error) {
	res, err := decimal.NewFromString(cfg.Resolution)
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolution %q is not a decimal: %w", cfg.Resolution, err)
	}
	if res.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("resolution %q must be positive", cfg.Resolution)
	}
	return res, nil
}

// ParseDepthUnit maps the configured unit name onto the aggregator's enum.
func (cfg AppConfig) ParseDepthUnit() (book.Unit, error) {
	switch strings.ToLower(cfg.DepthUnit) {
	case "asset", "":
		return book.UnitAsset, nil
	case "usd", "notional":
		return book.UnitNotional, nil
	}
	return 0, fmt.Errorf("unknown depth unit %q (want asset or usd)", cfg.DepthUnit)
}
