package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	daiAddr   = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	deltaAddr = "0x00000000000000000000000000000000000000d1"
	ownerAddr = "0x00000000000000000000000000000000000000a1"
	nativeHex = "0x0000000000000000000000000000000000000000"
	feedAddr  = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
)

const sampleYAML = `
owner: "` + ownerAddr + `"
logging:
  level: debug
  format: text
vault:
  quote_token: DAI
  hedge_token: DELTA
tokens:
  - "DAI:` + daiAddr + `:18"
  - "DELTA:` + deltaAddr + `:6"
feeds:
  - "` + nativeHex + `/` + daiAddr + `@mock:8:100000000000"
stables:
  - "` + daiAddr + `/` + deltaAddr + `"
balances:
  - "DAI:` + ownerAddr + `:1000.5"
limits:
  max_per_writer: "5000"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.Vault.PremiumFeeBps != 1000 {
		t.Errorf("premium fee = %d, want 1000", cfg.Vault.PremiumFeeBps)
	}
	if cfg.Vault.ExpiryWindow != 14*24*time.Hour {
		t.Errorf("expiry window = %s, want 336h", cfg.Vault.ExpiryWindow)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("cache ttl = %s, want 30s", cfg.CacheTTL)
	}
	// No owner or tokens configured.
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty config")
	}
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.OwnerAddress() != common.HexToAddress(ownerAddr) {
		t.Errorf("owner = %s", cfg.OwnerAddress())
	}
	lvl, _ := cfg.LogLevel()
	if lvl != slog.LevelDebug {
		t.Errorf("log level = %s, want DEBUG", lvl)
	}

	tokens, _ := cfg.TokenSpecs()
	if len(tokens) != 2 || tokens[1].Symbol != "DELTA" || tokens[1].Decimals != 6 {
		t.Errorf("tokens = %+v", tokens)
	}
	feeds, _ := cfg.FeedSpecs()
	if len(feeds) != 1 || !feeds[0].Mock || feeds[0].MockDecimals != 8 {
		t.Fatalf("feeds = %+v", feeds)
	}
	if feeds[0].MockAnswer.String() != "100000000000" {
		t.Errorf("mock answer = %s", feeds[0].MockAnswer)
	}
	balances, _ := cfg.BalanceSpecs()
	if len(balances) != 1 || !balances[0].Amount.Equal(decimal.RequireFromString("1000.5")) {
		t.Errorf("balances = %+v", balances)
	}
	perWriter, openInterest, err := cfg.LimitValues()
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if !perWriter.Equal(decimal.NewFromInt(5000)) || !openInterest.IsZero() {
		t.Errorf("limits = %s / %s", perWriter, openInterest)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VAULT_PORT", "9090")
	t.Setenv("VAULT_VAULT_PREMIUM_FEE_BPS", "250")
	t.Setenv("VAULT_VAULT_EXPIRY_WINDOW", "48h")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.Vault.PremiumFeeBps != 250 {
		t.Errorf("premium fee = %d, want 250", cfg.Vault.PremiumFeeBps)
	}
	if cfg.Vault.ExpiryWindow != 48*time.Hour {
		t.Errorf("expiry window = %s, want 48h", cfg.Vault.ExpiryWindow)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad owner", func(c *Config) { c.Owner = "alice" }},
		{"fee too high", func(c *Config) { c.Vault.PremiumFeeBps = 10001 }},
		{"zero window", func(c *Config) { c.Vault.ExpiryWindow = 0 }},
		{"unknown quote", func(c *Config) { c.Vault.QuoteToken = "USDC" }},
		{"same quote and hedge", func(c *Config) { c.Vault.HedgeToken = "DAI" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"duplicate symbol", func(c *Config) { c.Tokens = append(c.Tokens, "DAI:"+deltaAddr+":18") }},
		{"native symbol", func(c *Config) { c.Tokens = append(c.Tokens, "ETH:"+deltaAddr+":18") }},
		{"onchain feed without rpc", func(c *Config) { c.Feeds = []string{nativeHex + "/" + daiAddr + "@" + feedAddr} }},
		{"unknown balance token", func(c *Config) { c.Balances = []string{"USDC:" + ownerAddr + ":1"} }},
		{"negative limit", func(c *Config) { c.Limits.MaxOpenInterest = "-1" }},
		{"bad limit", func(c *Config) { c.Limits.MaxPerWriter = "lots" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleYAML))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_NativeVaultToken(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Vault.HedgeToken = NativeSymbol
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for native hedge token")
	}
}

func TestValidate_OnchainFeedWithRPC(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.RPCURL = "http://localhost:8545"
	cfg.Feeds = []string{nativeHex + "/" + daiAddr + "@" + feedAddr}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	feeds, _ := cfg.FeedSpecs()
	if feeds[0].Mock || feeds[0].Feed != common.HexToAddress(feedAddr) {
		t.Errorf("feed = %+v", feeds[0])
	}
}

func TestParseToken_Invalid(t *testing.T) {
	tests := []string{
		"",
		"DAI",
		"DAI:" + daiAddr,
		"dai:" + daiAddr + ":18",
		"DAI:0x1234:18",
		"DAI:" + daiAddr + ":99",
		"DAI:" + daiAddr + ":18:extra",
		"DAI-" + daiAddr + "-18",
	}
	for _, s := range tests {
		if _, err := ParseToken(s); !errors.Is(err, ErrInvalidTokenSpec) {
			t.Errorf("ParseToken(%q): expected ErrInvalidTokenSpec, got %v", s, err)
		}
	}
}

func TestParseFeed_Invalid(t *testing.T) {
	tests := []string{
		nativeHex + "/" + daiAddr,
		nativeHex + "/" + daiAddr + "@",
		nativeHex + "/" + daiAddr + "@mock:8",
		nativeHex + "/" + daiAddr + "@mock:x:1",
		nativeHex + "/" + daiAddr + "@chainlink",
		daiAddr + "/" + daiAddr + "@mock:8:1", // identical tokens
	}
	for _, s := range tests {
		if _, err := ParseFeed(s); !errors.Is(err, ErrInvalidFeedSpec) {
			t.Errorf("ParseFeed(%q): expected ErrInvalidFeedSpec, got %v", s, err)
		}
	}
}

func TestParseFeed_NegativeMockAnswer(t *testing.T) {
	// Accepted here; the oracle rejects non-positive answers at read time.
	f, err := ParseFeed(nativeHex + "/" + daiAddr + "@mock:8:-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.MockAnswer.Sign() >= 0 {
		t.Errorf("answer = %s, want negative", f.MockAnswer)
	}
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair(daiAddr + "/" + deltaAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TokenA != common.HexToAddress(daiAddr) || p.TokenB != common.HexToAddress(deltaAddr) {
		t.Errorf("pair = %+v", p)
	}
	for _, s := range []string{"", daiAddr, daiAddr + "/" + daiAddr, daiAddr + "-" + deltaAddr} {
		if _, err := ParsePair(s); !errors.Is(err, ErrInvalidPairSpec) {
			t.Errorf("ParsePair(%q): expected ErrInvalidPairSpec, got %v", s, err)
		}
	}
}

func TestParseBalance_Invalid(t *testing.T) {
	for _, s := range []string{"DAI:" + ownerAddr, "DAI:" + ownerAddr + ":-1", "DAI:" + ownerAddr + ":1e18"} {
		if _, err := ParseBalance(s); !errors.Is(err, ErrInvalidBalanceSpec) {
			t.Errorf("ParseBalance(%q): expected ErrInvalidBalanceSpec, got %v", s, err)
		}
	}
}
