package feed

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// AggregatorV3ABI covers the two views the oracle needs.
const AggregatorV3ABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

var aggregatorABI = mustParseABI(AggregatorV3ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Caller executes read-only contract calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Chainlink reads an on-chain AggregatorV3 at the latest block.
type Chainlink struct {
	caller  Caller
	address common.Address
}

// NewChainlink binds a feed contract address to an RPC caller.
func NewChainlink(caller Caller, address common.Address) *Chainlink {
	return &Chainlink{caller: caller, address: address}
}

// Address returns the aggregator contract address.
func (c *Chainlink) Address() common.Address { return c.address }

func (c *Chainlink) Decimals(ctx context.Context) (uint8, error) {
	out, err := c.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("feed: decimals: unexpected type %T", out[0])
	}
	return dec, nil
}

func (c *Chainlink) LatestRoundData(ctx context.Context) (RoundData, error) {
	out, err := c.call(ctx, "latestRoundData")
	if err != nil {
		return RoundData{}, err
	}
	if len(out) != 5 {
		return RoundData{}, fmt.Errorf("feed: latestRoundData: got %d values", len(out))
	}

	vals := make([]*big.Int, len(out))
	for i, v := range out {
		b, ok := v.(*big.Int)
		if !ok {
			return RoundData{}, fmt.Errorf("feed: latestRoundData: value %d has type %T", i, v)
		}
		vals[i] = b
	}
	return RoundData{
		RoundID:         vals[0],
		Answer:          vals[1],
		StartedAt:       vals[2],
		UpdatedAt:       vals[3],
		AnsweredInRound: vals[4],
	}, nil
}

func (c *Chainlink) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("feed: pack %s: %w", method, err)
	}
	to := c.address
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: call %s on %s: %w", method, c.address, err)
	}
	out, err := aggregatorABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("feed: unpack %s: %w", method, err)
	}
	return out, nil
}
