package feed_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/atmx/option-vault/internal/feed"
)

// fakeRPC answers calls by method selector with pre-packed return data.
type fakeRPC struct {
	t       *testing.T
	abi     abi.ABI
	answers map[string][]interface{}
	calls   int
}

func newFakeRPC(t *testing.T) *fakeRPC {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(feed.AggregatorV3ABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return &fakeRPC{t: t, abi: parsed, answers: make(map[string][]interface{})}
}

func (f *fakeRPC) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	for name, m := range f.abi.Methods {
		if bytes.HasPrefix(msg.Data, m.ID) {
			vals, ok := f.answers[name]
			if !ok {
				return nil, errors.New("execution reverted")
			}
			return m.Outputs.Pack(vals...)
		}
	}
	return nil, errors.New("unknown selector")
}

func TestMock_NoRound(t *testing.T) {
	m := feed.NewMock(8)
	if _, err := m.LatestRoundData(context.Background()); !errors.Is(err, feed.ErrNoRound) {
		t.Errorf("expected ErrNoRound, got %v", err)
	}
}

func TestMock_SetLatestRoundData(t *testing.T) {
	m := feed.NewMock(18)
	m.SetLatestRoundData(big.NewInt(7), big.NewInt(209269774), big.NewInt(1), big.NewInt(2), big.NewInt(6))

	rd, err := m.LatestRoundData(context.Background())
	if err != nil {
		t.Fatalf("latestRoundData: %v", err)
	}
	if rd.RoundID.Int64() != 7 || rd.AnsweredInRound.Int64() != 6 {
		t.Errorf("round = %v/%v, want 7/6", rd.RoundID, rd.AnsweredInRound)
	}
	if rd.Answer.Int64() != 209269774 {
		t.Errorf("answer = %v", rd.Answer)
	}
	dec, _ := m.Decimals(context.Background())
	if dec != 18 {
		t.Errorf("decimals = %d, want 18", dec)
	}
}

func TestChainlink_DecodesAggregator(t *testing.T) {
	rpc := newFakeRPC(t)
	rpc.answers["decimals"] = []interface{}{uint8(8)}
	roundID, _ := new(big.Int).SetString("110680464442257320247", 10)
	rpc.answers["latestRoundData"] = []interface{}{
		roundID,
		big.NewInt(-5),
		big.NewInt(1700000000),
		big.NewInt(1700000012),
		roundID,
	}

	c := feed.NewChainlink(rpc, common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"))
	ctx := context.Background()

	dec, err := c.Decimals(ctx)
	if err != nil || dec != 8 {
		t.Fatalf("decimals = %d, %v; want 8", dec, err)
	}

	rd, err := c.LatestRoundData(ctx)
	if err != nil {
		t.Fatalf("latestRoundData: %v", err)
	}
	if rd.RoundID.Cmp(roundID) != 0 || rd.AnsweredInRound.Cmp(roundID) != 0 {
		t.Errorf("round ids = %v/%v", rd.RoundID, rd.AnsweredInRound)
	}
	if rd.Answer.Int64() != -5 {
		t.Errorf("answer = %v, want -5", rd.Answer)
	}
	if rd.UpdatedAt.Int64() != 1700000012 {
		t.Errorf("updatedAt = %v", rd.UpdatedAt)
	}
	if rpc.calls != 2 {
		t.Errorf("calls = %d, want 2", rpc.calls)
	}
}

func TestChainlink_CallError(t *testing.T) {
	rpc := newFakeRPC(t)
	c := feed.NewChainlink(rpc, common.HexToAddress("0x01"))
	if _, err := c.LatestRoundData(context.Background()); err == nil {
		t.Error("expected error from reverted call")
	}
}
