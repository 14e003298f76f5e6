package config

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTokenSpec   = errors.New("config: invalid token spec")
	ErrInvalidFeedSpec    = errors.New("config: invalid feed spec")
	ErrInvalidPairSpec    = errors.New("config: invalid pair spec")
	ErrInvalidBalanceSpec = errors.New("config: invalid balance spec")
)

const addr = `(0x[0-9a-fA-F]{40})`

// tokenRegex matches: {SYMBOL}:{0xADDRESS}:{DECIMALS}
// Example: DAI:0x6B175474E89094C44Da98b954EedeAC495271d0F:18
var tokenRegex = regexp.MustCompile(`^([A-Z][A-Z0-9]{0,10}):` + addr + `:(\d{1,2})$`)

// feedRegex matches: {0xTOKENA}/{0xTOKENB}@{0xFEED | mock:DECIMALS:ANSWER}
var feedRegex = regexp.MustCompile(`^` + addr + `/` + addr + `@(?:` + addr + `|mock:(\d{1,2}):(-?\d+))$`)

// pairRegex matches: {0xTOKENA}/{0xTOKENB}
var pairRegex = regexp.MustCompile(`^` + addr + `/` + addr + `$`)

// balanceRegex matches: {SYMBOL}:{0xACCOUNT}:{AMOUNT} with AMOUNT in whole tokens.
var balanceRegex = regexp.MustCompile(`^([A-Z][A-Z0-9]{0,10}):` + addr + `:(\d+(?:\.\d+)?)$`)

// TokenSpec registers a token in the ledger.
type TokenSpec struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// ParseToken parses a token spec.
// Format: {SYMBOL}:{0xADDRESS}:{DECIMALS}
func ParseToken(s string) (TokenSpec, error) {
	m := tokenRegex.FindStringSubmatch(s)
	if m == nil {
		return TokenSpec{}, fmt.Errorf("%w: %s (expected SYMBOL:0xADDRESS:DECIMALS)", ErrInvalidTokenSpec, s)
	}
	dec, err := strconv.ParseUint(m[3], 10, 8)
	if err != nil || dec > 36 {
		return TokenSpec{}, fmt.Errorf("%w: decimals %s out of range", ErrInvalidTokenSpec, m[3])
	}
	return TokenSpec{
		Symbol:   m[1],
		Address:  common.HexToAddress(m[2]),
		Decimals: uint8(dec),
	}, nil
}

// FeedSpec binds a price feed to a token pair. Either Feed names an
// on-chain aggregator or Mock is set with a fixed answer.
type FeedSpec struct {
	TokenA, TokenB common.Address
	Feed           common.Address
	Mock           bool
	MockDecimals   uint8
	MockAnswer     *big.Int
}

// ParseFeed parses a feed spec.
// Format: {0xTOKENA}/{0xTOKENB}@{0xFEED} or {0xTOKENA}/{0xTOKENB}@mock:{DECIMALS}:{ANSWER}
func ParseFeed(s string) (FeedSpec, error) {
	m := feedRegex.FindStringSubmatch(s)
	if m == nil {
		return FeedSpec{}, fmt.Errorf("%w: %s (expected 0xA/0xB@0xFEED or 0xA/0xB@mock:DECIMALS:ANSWER)",
			ErrInvalidFeedSpec, s)
	}
	f := FeedSpec{
		TokenA: common.HexToAddress(m[1]),
		TokenB: common.HexToAddress(m[2]),
	}
	if f.TokenA == f.TokenB {
		return FeedSpec{}, fmt.Errorf("%w: %s: identical tokens", ErrInvalidFeedSpec, s)
	}
	if m[3] != "" {
		f.Feed = common.HexToAddress(m[3])
		return f, nil
	}

	dec, err := strconv.ParseUint(m[4], 10, 8)
	if err != nil || dec > 36 {
		return FeedSpec{}, fmt.Errorf("%w: decimals %s out of range", ErrInvalidFeedSpec, m[4])
	}
	answer, ok := new(big.Int).SetString(m[5], 10)
	if !ok {
		return FeedSpec{}, fmt.Errorf("%w: answer %s", ErrInvalidFeedSpec, m[5])
	}
	f.Mock = true
	f.MockDecimals = uint8(dec)
	f.MockAnswer = answer
	return f, nil
}

// PairSpec names an unordered token pair.
type PairSpec struct {
	TokenA, TokenB common.Address
}

// ParsePair parses a pair spec.
// Format: {0xTOKENA}/{0xTOKENB}
func ParsePair(s string) (PairSpec, error) {
	m := pairRegex.FindStringSubmatch(s)
	if m == nil {
		return PairSpec{}, fmt.Errorf("%w: %s (expected 0xA/0xB)", ErrInvalidPairSpec, s)
	}
	p := PairSpec{TokenA: common.HexToAddress(m[1]), TokenB: common.HexToAddress(m[2])}
	if p.TokenA == p.TokenB {
		return PairSpec{}, fmt.Errorf("%w: %s: identical tokens", ErrInvalidPairSpec, s)
	}
	return p, nil
}

// BalanceSpec seeds an account balance in the in-memory ledger.
type BalanceSpec struct {
	Symbol  string
	Account common.Address
	Amount  decimal.Decimal // whole tokens
}

// ParseBalance parses a balance spec.
// Format: {SYMBOL}:{0xACCOUNT}:{AMOUNT}
func ParseBalance(s string) (BalanceSpec, error) {
	m := balanceRegex.FindStringSubmatch(s)
	if m == nil {
		return BalanceSpec{}, fmt.Errorf("%w: %s (expected SYMBOL:0xACCOUNT:AMOUNT)", ErrInvalidBalanceSpec, s)
	}
	amount, err := decimal.NewFromString(m[3])
	if err != nil {
		return BalanceSpec{}, fmt.Errorf("%w: amount %s", ErrInvalidBalanceSpec, m[3])
	}
	return BalanceSpec{
		Symbol:  m[1],
		Account: common.HexToAddress(m[2]),
		Amount:  amount,
	}, nil
}
