// Package config loads the server configuration from an optional YAML
// file with VAULT_* environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// NativeSymbol is the symbol of the chain's native asset.
const NativeSymbol = "ETH"

// Config is the top-level configuration.
type Config struct {
	Port        int           `mapstructure:"port"`
	DatabaseURL string        `mapstructure:"database_url"`
	RedisURL    string        `mapstructure:"redis_url"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RPCURL      string        `mapstructure:"rpc_url"`
	Owner       string        `mapstructure:"owner"`

	// VenueLiquidity seeds the swap venue with this many whole units of
	// every registered token.
	VenueLiquidity string `mapstructure:"venue_liquidity"`

	Logging LoggingConfig `mapstructure:"logging"`
	Vault   VaultConfig   `mapstructure:"vault"`
	Limits  LimitsConfig  `mapstructure:"limits"`

	Tokens   []string `mapstructure:"tokens"`
	Feeds    []string `mapstructure:"feeds"`
	Stables  []string `mapstructure:"stables"`
	Balances []string `mapstructure:"balances"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// VaultConfig selects the vault tokens by symbol and sets the economics
// shared by both vaults.
type VaultConfig struct {
	PremiumFeeBps uint64        `mapstructure:"premium_fee_bps"`
	ExpiryWindow  time.Duration `mapstructure:"expiry_window"`
	QuoteToken    string        `mapstructure:"quote_token"`
	HedgeToken    string        `mapstructure:"hedge_token"`
}

// LimitsConfig caps open notional in quote token units. Empty or zero
// disables a cap.
type LimitsConfig struct {
	MaxPerWriter    string `mapstructure:"max_per_writer"`
	MaxOpenInterest string `mapstructure:"max_open_interest"`
}

// Load reads config from path (may be empty) with env var overrides, e.g.
// VAULT_PORT, VAULT_VAULT_PREMIUM_FEE_BPS, VAULT_TOKENS (comma separated).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("VAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", 30*time.Second)
	v.SetDefault("rpc_url", "")
	v.SetDefault("owner", "")
	v.SetDefault("venue_liquidity", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("vault.premium_fee_bps", 1000)
	v.SetDefault("vault.expiry_window", 14*24*time.Hour)
	v.SetDefault("vault.quote_token", "")
	v.SetDefault("vault.hedge_token", "")
	v.SetDefault("limits.max_per_writer", "")
	v.SetDefault("limits.max_open_interest", "")
	v.SetDefault("tokens", []string{})
	v.SetDefault("feeds", []string{})
	v.SetDefault("stables", []string{})
	v.SetDefault("balances", []string{})
}

// Validate checks field ranges and parses every list entry.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535")
	}
	if !common.IsHexAddress(c.Owner) {
		return fmt.Errorf("owner must be a hex address (set VAULT_OWNER)")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	if c.Vault.PremiumFeeBps > 10000 {
		return fmt.Errorf("vault.premium_fee_bps must be <= 10000")
	}
	if c.Vault.ExpiryWindow <= 0 {
		return fmt.Errorf("vault.expiry_window must be > 0")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must be >= 0")
	}

	tokens, err := c.TokenSpecs()
	if err != nil {
		return err
	}
	bySymbol := make(map[string]bool, len(tokens)+1)
	bySymbol[NativeSymbol] = true
	for _, t := range tokens {
		if bySymbol[t.Symbol] {
			return fmt.Errorf("tokens: duplicate symbol %s", t.Symbol)
		}
		bySymbol[t.Symbol] = true
	}
	for _, sym := range []struct{ key, val string }{
		{"vault.quote_token", c.Vault.QuoteToken},
		{"vault.hedge_token", c.Vault.HedgeToken},
	} {
		if sym.val == "" {
			return fmt.Errorf("%s is required", sym.key)
		}
		if sym.val == NativeSymbol {
			return fmt.Errorf("%s must be a token, not the native asset", sym.key)
		}
		if !bySymbol[sym.val] {
			return fmt.Errorf("%s: unknown token %s", sym.key, sym.val)
		}
	}
	if c.Vault.QuoteToken == c.Vault.HedgeToken {
		return fmt.Errorf("vault.quote_token and vault.hedge_token must differ")
	}

	feeds, err := c.FeedSpecs()
	if err != nil {
		return err
	}
	for _, f := range feeds {
		if !f.Mock && c.RPCURL == "" {
			return fmt.Errorf("rpc_url is required for on-chain feed %s", f.Feed.Hex())
		}
	}
	if _, err := c.StableSpecs(); err != nil {
		return err
	}
	balances, err := c.BalanceSpecs()
	if err != nil {
		return err
	}
	for _, b := range balances {
		if !bySymbol[b.Symbol] {
			return fmt.Errorf("balances: unknown token %s", b.Symbol)
		}
	}
	if _, _, err := c.LimitValues(); err != nil {
		return err
	}
	if _, err := c.VenueLiquidityValue(); err != nil {
		return err
	}
	return nil
}

// OwnerAddress returns the configured owner of the vaults and the oracle
// manager.
func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

// LogLevel maps logging.level to a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return lvl, nil
}

// TokenSpecs parses the tokens list.
func (c *Config) TokenSpecs() ([]TokenSpec, error) {
	out := make([]TokenSpec, 0, len(c.Tokens))
	for _, s := range c.Tokens {
		t, err := ParseToken(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		if t.Symbol == NativeSymbol {
			return nil, fmt.Errorf("%w: %s is reserved for the native asset", ErrInvalidTokenSpec, NativeSymbol)
		}
		out = append(out, t)
	}
	return out, nil
}

// FeedSpecs parses the feeds list.
func (c *Config) FeedSpecs() ([]FeedSpec, error) {
	out := make([]FeedSpec, 0, len(c.Feeds))
	for _, s := range c.Feeds {
		f, err := ParseFeed(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// StableSpecs parses the stables list.
func (c *Config) StableSpecs() ([]PairSpec, error) {
	out := make([]PairSpec, 0, len(c.Stables))
	for _, s := range c.Stables {
		p, err := ParsePair(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// BalanceSpecs parses the balances list.
func (c *Config) BalanceSpecs() ([]BalanceSpec, error) {
	out := make([]BalanceSpec, 0, len(c.Balances))
	for _, s := range c.Balances {
		b, err := ParseBalance(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// LimitValues parses the deposit limits.
func (c *Config) LimitValues() (perWriter, openInterest decimal.Decimal, err error) {
	if perWriter, err = nonNegative("limits.max_per_writer", c.Limits.MaxPerWriter); err != nil {
		return
	}
	openInterest, err = nonNegative("limits.max_open_interest", c.Limits.MaxOpenInterest)
	return
}

// VenueLiquidityValue parses venue_liquidity.
func (c *Config) VenueLiquidityValue() (decimal.Decimal, error) {
	return nonNegative("venue_liquidity", c.VenueLiquidity)
}

func nonNegative(key, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must be >= 0", key)
	}
	return d, nil
}
