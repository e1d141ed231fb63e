package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"crypto_scalper/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Bybit v5 endpoints.
const (
	bybitRestMainnet = "https://api.bybit.com"
	bybitRestTestnet = "https://api-testnet.bybit.com"
	bybitWSMainnet   = "wss://stream.bybit.com/v5"
	bybitWSTestnet   = "wss://stream-testnet.bybit.com/v5"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// 기본값 → YAML → .env → 환경 변수 순서로 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Bybit BybitConfig `yaml:"bybit"`

	Quoting domain.QuotingConfig `yaml:"quoting"`

	Telemetry struct {
		Addr            string   `yaml:"addr"`
		StatsIntervalMS int      `yaml:"stats_interval_ms"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
	} `yaml:"telemetry"`

	Storage struct {
		Path      string `yaml:"path"`
		QueueSize int    `yaml:"queue_size"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// BybitConfig holds credentials and endpoints for the exchange adapter.
type BybitConfig struct {
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	Testnet       bool   `yaml:"testnet"`
	Category      string `yaml:"category"`
	Leverage      int    `yaml:"leverage"`
	RestURL       string `yaml:"rest_url"`
	WSURL         string `yaml:"ws_url"`
	MinIntervalMS int    `yaml:"min_interval_ms"`
	RecvWindowMS  int    `yaml:"recv_window_ms"`
}

// HasCredentials reports whether private endpoints can be used.
func (b BybitConfig) HasCredentials() bool {
	return b.APIKey != "" && b.APISecret != ""
}

// REST returns the REST base URL.
func (b BybitConfig) REST() string {
	if b.RestURL != "" {
		return b.RestURL
	}
	if b.Testnet {
		return bybitRestTestnet
	}
	return bybitRestMainnet
}

// PublicWS returns the public stream URL for the configured category.
func (b BybitConfig) PublicWS() string {
	return b.wsBase() + "/public/" + b.Category
}

// PrivateWS returns the private stream URL.
func (b BybitConfig) PrivateWS() string {
	return b.wsBase() + "/private"
}

func (b BybitConfig) wsBase() string {
	if b.WSURL != "" {
		return strings.TrimRight(b.WSURL, "/")
	}
	if b.Testnet {
		return bybitWSTestnet
	}
	return bybitWSMainnet
}

// SupportsLeverage is true for derivatives categories.
func (b BybitConfig) SupportsLeverage() bool {
	return b.Category == "linear" || b.Category == "inverse"
}

// DefaultConfig returns a configuration that runs safely in dry-run on testnet.
func DefaultConfig() Config {
	var cfg Config
	cfg.App.Name = "crypto_scalper"
	cfg.App.Version = "0.1.0"

	cfg.Bybit = BybitConfig{
		Testnet:       true,
		Category:      "linear",
		Leverage:      3,
		MinIntervalMS: 120,
		RecvWindowMS:  5000,
	}
	cfg.Quoting = domain.DefaultQuotingConfig()

	cfg.Telemetry.Addr = ":8080"
	cfg.Telemetry.StatsIntervalMS = 5000
	cfg.Storage.Path = "data/scalper.db"
	cfg.Storage.QueueSize = 1024
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// A missing file yields defaults. envFiles default to ".env"; missing ones are skipped.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		var keys edgeKeys
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if k := keys.Quoting; k.EdgeTicks != nil {
			deriveDynEdge(&cfg.Quoting, k.DynEdgeBase != nil, k.DynEdgeMax != nil)
		}
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("Config file not found, using defaults", slog.String("path", path))
	default:
		return nil, err
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	// 보안 우선 - 환경 변수 오버라이드 지원
	if err := overrideWithEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Bybit.Category {
	case "linear", "inverse", "spot":
	default:
		return &domain.ConfigError{Field: "bybit.category", Err: fmt.Errorf("unsupported category %q", c.Bybit.Category)}
	}
	if c.Bybit.Leverage < 1 {
		return &domain.ConfigError{Field: "bybit.leverage", Err: errors.New("must be at least 1")}
	}
	if c.Bybit.MinIntervalMS < 0 {
		return &domain.ConfigError{Field: "bybit.min_interval_ms", Err: errors.New("must not be negative")}
	}
	if c.Bybit.WSURL != "" && !hasPrefix(c.Bybit.WSURL, "ws://") && !hasPrefix(c.Bybit.WSURL, "wss://") {
		return &domain.ConfigError{Field: "bybit.ws_url", Err: fmt.Errorf("invalid WS URL: %s", c.Bybit.WSURL)}
	}
	if !c.Quoting.DryRun && !c.Bybit.HasCredentials() {
		return &domain.ConfigError{Field: "bybit.api_key", Err: errors.New("live trading requires API credentials")}
	}
	if c.Telemetry.StatsIntervalMS <= 0 {
		return &domain.ConfigError{Field: "telemetry.stats_interval_ms", Err: errors.New("must be positive")}
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return &domain.ConfigError{Field: "logging.level", Err: err}
	}
	return c.Quoting.Validate()
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// edgeKeys records which edge settings a YAML file sets explicitly.
type edgeKeys struct {
	Quoting struct {
		EdgeTicks   *float64 `yaml:"edge_ticks"`
		DynEdgeBase *float64 `yaml:"dyn_edge_base"`
		DynEdgeMax  *float64 `yaml:"dyn_edge_max"`
	} `yaml:"quoting"`
}

// deriveDynEdge starts the dynamic edge at the static edge unless set explicitly.
func deriveDynEdge(q *domain.QuotingConfig, baseSet, maxSet bool) {
	if !baseSet {
		q.DynEdgeBase = q.EdgeTicks
	}
	if !maxSet {
		q.DynEdgeMax = q.DynEdgeBase + 6
	}
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) error {
	e := envReader{}

	e.str("BYBIT_KEY", &cfg.Bybit.APIKey)
	e.str("BYBIT_SECRET", &cfg.Bybit.APISecret)
	e.boolean("BYBIT_TESTNET", &cfg.Bybit.Testnet)
	e.str("CATEGORY", &cfg.Bybit.Category)
	e.integer("LEVERAGE", &cfg.Bybit.Leverage)

	q := &cfg.Quoting
	e.str("SYMBOL", &q.Symbol)
	e.float("ORDER_QTY", &q.OrderQty)
	e.float("MIN_SPREAD_TICKS", &q.MinSpreadTicks)
	if e.float("EDGE_TICKS", &q.EdgeTicks) {
		deriveDynEdge(q, false, false)
	}
	e.float("DYN_EDGE_BASE", &q.DynEdgeBase)
	e.float("DYN_EDGE_MAX", &q.DynEdgeMax)
	e.float("DYN_EDGE_VOL_SCALE", &q.DynEdgeVolScale)
	e.float("MIN_NET_SPREAD_TICKS", &q.MinNetSpreadTicks)
	e.float("MIN_EXPECTED_PROFIT_TICKS", &q.MinExpectedProfitTicks)
	e.integer("CANCEL_AFTER_MS", &q.CancelAfterMS)
	e.str("TIME_IN_FORCE", &q.TimeInForce)
	e.float("SIZE_IMBALANCE_TOLERANCE", &q.SizeImbalanceTolerance)
	e.integer("TRADE_AGG_WINDOW_MS", &q.TradeAggWindowMS)
	e.float("AGGRESSOR_BIAS_TOL", &q.AggressorBiasTol)
	e.integer("VOL_WINDOW_MS", &q.VolWindowMS)
	e.integer("BREAKOUT_WINDOW_MS", &q.BreakoutWindowMS)
	e.integer("MAX_OPEN_ORDERS", &q.MaxOpenOrders)
	e.integer("MAX_ORDERS_PER_MINUTE", &q.MaxOrdersPerMinute)
	e.integer("COOLDOWN_MS", &q.CooldownMS)
	e.boolean("DRY_RUN", &q.DryRun)

	e.str("TELEMETRY_ADDR", &cfg.Telemetry.Addr)
	e.str("STORAGE_PATH", &cfg.Storage.Path)
	e.str("LOG_LEVEL", &cfg.Logging.Level)

	return e.err
}

// envReader applies set variables and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name string, err error) {
	if e.err == nil {
		e.err = &domain.ConfigError{Field: name, Err: err}
	}
}

func (e *envReader) str(name string, dst *string) bool {
	v, ok := e.lookup(name)
	if ok {
		*dst = v
	}
	return ok
}

func (e *envReader) float(name string, dst *float64) bool {
	v, ok := e.lookup(name)
	if !ok {
		return false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, err)
		return false
	}
	*dst = f
	return true
}

func (e *envReader) integer(name string, dst *int) bool {
	v, ok := e.lookup(name)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, err)
		return false
	}
	*dst = n
	return true
}

// boolean accepts 1/true/yes/y as true; anything else is false.
func (e *envReader) boolean(name string, dst *bool) bool {
	v, ok := e.lookup(name)
	if !ok {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		*dst = true
	default:
		*dst = false
	}
	return true
}
