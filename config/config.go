// Package config loads engine configuration from a YAML file or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/pairbot/pairbot/internal/domain"
)

// Supported trading platforms.
const (
	PlatformCex     = "cex"
	PlatformBinance = "binance"
)

// Strategy defaults.
var (
	defaultPublicPurchaseWindow  = 60 * time.Minute
	defaultPublicSaleWindow      = 60 * time.Minute
	defaultAccountPurchaseWindow = 120 * time.Minute
	defaultAccountSaleWindow     = 120 * time.Minute

	defaultTargetReservePct   = decimal.RequireFromString("0.1")
	defaultExchangeReservePct = decimal.RequireFromString("0.1")
	defaultOrderCapPctOnInit  = decimal.RequireFromString("0.25")
	defaultOrderCapPctSteady  = decimal.RequireFromString("0.6")
	defaultSensitivity        = decimal.RequireFromString("0.015")
)

// Config is the fully parsed engine configuration. Strategy parameters are
// fixed for the engine's lifetime.
type Config struct {
	Platform string
	Pair     domain.Pair

	PublicPurchaseWindow  time.Duration
	PublicSaleWindow      time.Duration
	AccountPurchaseWindow time.Duration
	AccountSaleWindow     time.Duration

	TargetReservePct   decimal.Decimal
	ExchangeReservePct decimal.Decimal
	OrderCapPctOnInit  decimal.Decimal
	OrderCapPctSteady  decimal.Decimal
	Sensitivity        decimal.Decimal
	StopLine           decimal.Decimal
	AutoExecute        bool

	WebhookURL      string
	WebhookUsername string
	ListenAddr      string
	JournalDir      string
}

type configTmp struct {
	Platform string `yaml:"platform"`
	Pair     string `yaml:"pair"`

	PublicPurchaseWindow  time.Duration `yaml:"public_purchase_window,omitempty"`
	PublicSaleWindow      time.Duration `yaml:"public_sale_window,omitempty"`
	AccountPurchaseWindow time.Duration `yaml:"account_purchase_window,omitempty"`
	AccountSaleWindow     time.Duration `yaml:"account_sale_window,omitempty"`

	TargetReservePct   string `yaml:"target_reserve_pct,omitempty"`
	ExchangeReservePct string `yaml:"exchange_reserve_pct,omitempty"`
	OrderCapPctOnInit  string `yaml:"order_cap_pct_on_init,omitempty"`
	OrderCapPctSteady  string `yaml:"order_cap_pct_steady,omitempty"`
	Sensitivity        string `yaml:"sensitivity,omitempty"`
	StopLine           string `yaml:"stop_line,omitempty"`
	AutoExecute        *bool  `yaml:"auto_execute,omitempty"`

	WebhookURL      string `yaml:"webhook_url,omitempty"`
	WebhookUsername string `yaml:"webhook_username,omitempty"`
	ListenAddr      string `yaml:"listen_addr,omitempty"`
	JournalDir      string `yaml:"journal_dir,omitempty"`
}

// Get parses the configuration from --config YAML when provided, otherwise
// from CLI flags.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	platform := flag.String("platform", PlatformCex, "trading platform: cex or binance")
	pairFlag := flag.String("pair", "BTC_USD", "trade pair, example: BTC_USD")
	stopLine := flag.String("stopline", "0", "minimum acceptable post-trade portfolio value")
	autoExecute := flag.Bool("autoexecute", true, "place orders without interactive confirmation")
	webhookURL := flag.String("webhook", "", "notification webhook url")
	listenAddr := flag.String("listen", "", "dashboard listen address, empty disables it")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	pair, err := parsePair(*pairFlag)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --pair provided, --pair=%s: %w", *pairFlag, err)
	}
	stop, err := decimal.NewFromString(*stopLine)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --stopline provided, --stopline=%s: %w", *stopLine, err)
	}

	cfg := defaults()
	cfg.Platform = *platform
	cfg.Pair = pair
	cfg.StopLine = stop
	cfg.AutoExecute = *autoExecute
	cfg.WebhookURL = *webhookURL
	cfg.ListenAddr = *listenAddr
	return cfg, cfg.validate()
}

func getYaml(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}
	return fromTmp(tmp)
}

func fromTmp(tmp configTmp) (Config, error) {
	pair, err := parsePair(tmp.Pair)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'pair' param in yaml config: %s: %w", tmp.Pair, err)
	}

	cfg := defaults()
	cfg.Platform = tmp.Platform
	cfg.Pair = pair
	cfg.WebhookURL = tmp.WebhookURL
	cfg.WebhookUsername = tmp.WebhookUsername
	cfg.ListenAddr = tmp.ListenAddr
	cfg.JournalDir = tmp.JournalDir

	if tmp.PublicPurchaseWindow > 0 {
		cfg.PublicPurchaseWindow = tmp.PublicPurchaseWindow
	}
	if tmp.PublicSaleWindow > 0 {
		cfg.PublicSaleWindow = tmp.PublicSaleWindow
	}
	if tmp.AccountPurchaseWindow > 0 {
		cfg.AccountPurchaseWindow = tmp.AccountPurchaseWindow
	}
	if tmp.AccountSaleWindow > 0 {
		cfg.AccountSaleWindow = tmp.AccountSaleWindow
	}
	if tmp.AutoExecute != nil {
		cfg.AutoExecute = *tmp.AutoExecute
	}

	for _, field := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"target_reserve_pct", tmp.TargetReservePct, &cfg.TargetReservePct},
		{"exchange_reserve_pct", tmp.ExchangeReservePct, &cfg.ExchangeReservePct},
		{"order_cap_pct_on_init", tmp.OrderCapPctOnInit, &cfg.OrderCapPctOnInit},
		{"order_cap_pct_steady", tmp.OrderCapPctSteady, &cfg.OrderCapPctSteady},
		{"sensitivity", tmp.Sensitivity, &cfg.Sensitivity},
		{"stop_line", tmp.StopLine, &cfg.StopLine},
	} {
		if field.raw == "" {
			continue
		}
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config: %w", field.name, err)
		}
		*field.dst = value
	}

	return cfg, cfg.validate()
}

func defaults() Config {
	return Config{
		Platform:              PlatformCex,
		PublicPurchaseWindow:  defaultPublicPurchaseWindow,
		PublicSaleWindow:      defaultPublicSaleWindow,
		AccountPurchaseWindow: defaultAccountPurchaseWindow,
		AccountSaleWindow:     defaultAccountSaleWindow,
		TargetReservePct:      defaultTargetReservePct,
		ExchangeReservePct:    defaultExchangeReservePct,
		OrderCapPctOnInit:     defaultOrderCapPctOnInit,
		OrderCapPctSteady:     defaultOrderCapPctSteady,
		Sensitivity:           defaultSensitivity,
		StopLine:              decimal.Zero,
		AutoExecute:           true,
	}
}

func (c Config) validate() error {
	if c.Platform != PlatformCex && c.Platform != PlatformBinance {
		return fmt.Errorf("unknown platform %q, want %s or %s", c.Platform, PlatformCex, PlatformBinance)
	}

	one := decimal.NewFromInt(1)
	for _, pct := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"target_reserve_pct", c.TargetReservePct},
		{"exchange_reserve_pct", c.ExchangeReservePct},
		{"order_cap_pct_on_init", c.OrderCapPctOnInit},
		{"order_cap_pct_steady", c.OrderCapPctSteady},
	} {
		if pct.value.IsNegative() || pct.value.GreaterThan(one) {
			return fmt.Errorf("%s must be between 0 and 1, got %s", pct.name, pct.value)
		}
	}
	if c.Sensitivity.IsNegative() {
		return fmt.Errorf("sensitivity must not be negative, got %s", c.Sensitivity)
	}
	return nil
}

func parsePair(s string) (domain.Pair, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Pair{}, fmt.Errorf("pair must look like BTC_USD, got %q", s)
	}
	return domain.Pair{
		Base:  strings.ToUpper(parts[0]),
		Quote: strings.ToUpper(parts[1]),
	}, nil
}
