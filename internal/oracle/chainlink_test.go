package oracle_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/atmx/option-vault/internal/feed"
	"github.com/atmx/option-vault/internal/ledger"
	"github.com/atmx/option-vault/internal/model"
	"github.com/atmx/option-vault/internal/oracle"
)

var (
	token1   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	tokenB   = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	oracleAt = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

func newTokens(t *testing.T) *ledger.Memory {
	t.Helper()
	l := ledger.NewMemory()
	if err := l.RegisterToken(token1, "MCK", 18); err != nil {
		t.Fatal(err)
	}
	if err := l.RegisterToken(tokenB, "MCK2", 18); err != nil {
		t.Fatal(err)
	}
	return l
}

func setRound(m *feed.Mock, roundID, answer, answeredIn int64) {
	m.SetLatestRoundData(big.NewInt(roundID), big.NewInt(answer), big.NewInt(1000), big.NewInt(1000), big.NewInt(answeredIn))
}

func newNativeOracle(t *testing.T, feedDecimals uint8) (*oracle.ChainlinkOracle, *feed.Mock) {
	t.Helper()
	pf := feed.NewMock(feedDecimals)
	o, err := oracle.NewChainlinkOracle(context.Background(), oracleAt, model.NativeToken, token1, pf, newTokens(t))
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	return o, pf
}

func TestChainlinkOracle_TokensInConstructionOrder(t *testing.T) {
	l := newTokens(t)
	o, err := oracle.NewChainlinkOracle(context.Background(), oracleAt, tokenB, token1, feed.NewMock(18), l)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	a, b := o.Tokens()
	if a != tokenB || b != token1 {
		t.Errorf("tokens = %s,%s; want %s,%s", a, b, tokenB, token1)
	}
}

func TestChainlinkOracle_Decimals(t *testing.T) {
	o, _ := newNativeOracle(t, 18)
	want := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if o.Decimals().Cmp(want) != 0 {
		t.Errorf("decimals = %s, want %s", o.Decimals(), want)
	}
	if o.Token0Decimals().Cmp(want) != 0 || o.Token1Decimals().Cmp(want) != 0 {
		t.Errorf("token scales = %s/%s, want %s", o.Token0Decimals(), o.Token1Decimals(), want)
	}
}

func TestChainlinkOracle_SameTokens(t *testing.T) {
	_, err := oracle.NewChainlinkOracle(context.Background(), oracleAt, token1, token1, feed.NewMock(18), newTokens(t))
	if !errors.Is(err, oracle.ErrInvalidTokens) {
		t.Errorf("expected ErrInvalidTokens, got %v", err)
	}
}

func TestChainlinkOracle_StalePrice(t *testing.T) {
	o, pf := newNativeOracle(t, 18)
	setRound(pf, 100, 1000, 90)
	_, err := o.GetAmountOut(context.Background(), model.NativeToken, ether(100))
	if !errors.Is(err, oracle.ErrStalePrice) {
		t.Errorf("expected ErrStalePrice, got %v", err)
	}
}

func TestChainlinkOracle_InvalidPrice(t *testing.T) {
	o, pf := newNativeOracle(t, 18)
	for _, answer := range []int64{0, -1} {
		setRound(pf, 100, answer, 100)
		_, err := o.GetAmountOut(context.Background(), model.NativeToken, ether(100))
		if !errors.Is(err, oracle.ErrInvalidPrice) {
			t.Errorf("answer %d: expected ErrInvalidPrice, got %v", answer, err)
		}
	}
}

func TestChainlinkOracle_Token1InToken0(t *testing.T) {
	o, pf := newNativeOracle(t, 18)
	setRound(pf, 100, 209269774, 100)

	out, err := o.GetAmountOut(context.Background(), token1, uint256.NewInt(100_000_000))
	if err != nil {
		t.Fatalf("getAmountOut: %v", err)
	}
	if got := out.Dec(); got != "477852095353244850" {
		t.Errorf("amount out = %s, want 477852095353244850", got)
	}
}

func TestChainlinkOracle_Token0InToken1(t *testing.T) {
	o, pf := newNativeOracle(t, 18)
	setRound(pf, 100, 209269774, 100)

	out, err := o.GetAmountOut(context.Background(), model.NativeToken, ether(10))
	if err != nil {
		t.Fatalf("getAmountOut: %v", err)
	}
	if got := out.Dec(); got != "2092697740" {
		t.Errorf("amount out = %s, want 2092697740", got)
	}
}

func TestChainlinkOracle_UnsupportedToken(t *testing.T) {
	o, pf := newNativeOracle(t, 18)
	setRound(pf, 1, 1, 1)
	_, err := o.GetAmountOut(context.Background(), tokenB, ether(1))
	if !errors.Is(err, oracle.ErrUnsupportedToken) {
		t.Errorf("expected ErrUnsupportedToken, got %v", err)
	}
}

func TestChainlinkOracle_RoundTripWithinFloorError(t *testing.T) {
	base := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	quote := common.HexToAddress("0x00000000000000000000000000000000000000e2")

	tests := []struct {
		name       string
		feedDec    uint8
		dec0, dec1 uint8
		answer     int64
		amounts    []string
	}{
		{"18/18/18", 18, 18, 18, 209269774, []string{"1", "999", "10000000000000000000", "123456789012345678901"}},
		{"8/18/6", 8, 18, 6, 200012345678, []string{"1", "1000000000000", "3141592653589793238", "50000000000000000000"}},
		{"8/6/18", 8, 6, 18, 99_950_000, []string{"1", "7", "1000000", "123456789"}},
		{"6/8/8", 6, 8, 8, 31_415_926, []string{"3", "100000000", "2718281828"}},
		{"18/6/6", 18, 6, 6, 1_000_000_000_000_000_000, []string{"1", "42", "1000000"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := ledger.NewMemory()
			if err := l.RegisterToken(base, "BASE", tc.dec0); err != nil {
				t.Fatal(err)
			}
			if err := l.RegisterToken(quote, "QUOTE", tc.dec1); err != nil {
				t.Fatal(err)
			}
			pf := feed.NewMockWithAnswer(tc.feedDec, big.NewInt(tc.answer))
			o, err := oracle.NewChainlinkOracle(context.Background(), oracleAt, base, quote, pf, l)
			if err != nil {
				t.Fatalf("new oracle: %v", err)
			}

			// Each leg floors, so the return leg loses less than
			// feedScale*token0Scale / (answer*token1Scale) + 1 base units.
			bound := new(big.Int).Mul(o.Decimals(), o.Token0Decimals())
			bound.Quo(bound, new(big.Int).Mul(big.NewInt(tc.answer), o.Token1Decimals()))
			bound.Add(bound, big.NewInt(1))

			for _, a := range tc.amounts {
				in := uint256.MustFromDecimal(a)
				mid, err := o.GetAmountOut(context.Background(), base, in)
				if err != nil {
					t.Fatalf("forward %s: %v", a, err)
				}
				back, err := o.GetAmountOut(context.Background(), quote, mid)
				if err != nil {
					t.Fatalf("backward %s: %v", a, err)
				}
				if back.Gt(in) {
					t.Errorf("%s: round trip gained value: %s", a, back.Dec())
					continue
				}
				loss := new(big.Int).Sub(in.ToBig(), back.ToBig())
				if loss.Cmp(bound) > 0 {
					t.Errorf("%s -> %s -> %s: loss %s exceeds %s", a, mid.Dec(), back.Dec(), loss, bound)
				}
			}
		})
	}
}
