// Package oracle converts token amounts using Chainlink price feeds and keeps
// the registry that maps token pairs to pair oracles.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/atmx/option-vault/internal/feed"
)

var (
	ErrInvalidTokens       = errors.New("oracle: invalid tokens")
	ErrTokenOracleMismatch = errors.New("oracle: token and oracle not match")
	ErrStalePrice          = errors.New("oracle: old price")
	ErrInvalidPrice        = errors.New("oracle: invalid price")
	ErrUnsupportedToken    = errors.New("oracle: token not in pair")
	ErrAmountOverflow      = errors.New("oracle: amount out overflows uint256")
	ErrNoOracle            = errors.New("oracle: no oracle")
	ErrNoStable            = errors.New("oracle: no stable")
)

// TokenDecimals resolves a token's precision. The ledger satisfies it.
type TokenDecimals interface {
	Decimals(token common.Address) (uint8, error)
}

// PairOracle prices one token pair in both directions.
type PairOracle interface {
	Address() common.Address
	Tokens() (common.Address, common.Address)
	GetAmountOut(ctx context.Context, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error)
}

// ChainlinkOracle prices token0 in token1 from a feed quoting one whole
// token0 in token1 at the feed's precision.
type ChainlinkOracle struct {
	address     common.Address
	token0      common.Address
	token1      common.Address
	feed        feed.PriceFeed
	feedScale   *big.Int
	token0Scale *big.Int
	token1Scale *big.Int
}

// NewChainlinkOracle binds a feed to the ordered pair (tokenA, tokenB). The
// scales are fixed at construction.
func NewChainlinkOracle(ctx context.Context, address, tokenA, tokenB common.Address, pf feed.PriceFeed, tokens TokenDecimals) (*ChainlinkOracle, error) {
	if tokenA == tokenB {
		return nil, ErrInvalidTokens
	}

	feedDec, err := pf.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: feed decimals: %w", err)
	}
	dec0, err := tokens.Decimals(tokenA)
	if err != nil {
		return nil, err
	}
	dec1, err := tokens.Decimals(tokenB)
	if err != nil {
		return nil, err
	}

	return &ChainlinkOracle{
		address:     address,
		token0:      tokenA,
		token1:      tokenB,
		feed:        pf,
		feedScale:   pow10(feedDec),
		token0Scale: pow10(dec0),
		token1Scale: pow10(dec1),
	}, nil
}

func pow10(dec uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil)
}

func (o *ChainlinkOracle) Address() common.Address { return o.address }

// Tokens returns the pair in construction order.
func (o *ChainlinkOracle) Tokens() (common.Address, common.Address) {
	return o.token0, o.token1
}

// Decimals returns 10^feedDecimals.
func (o *ChainlinkOracle) Decimals() *big.Int { return new(big.Int).Set(o.feedScale) }

func (o *ChainlinkOracle) Token0Decimals() *big.Int { return new(big.Int).Set(o.token0Scale) }

func (o *ChainlinkOracle) Token1Decimals() *big.Int { return new(big.Int).Set(o.token1Scale) }

// GetAmountOut converts amountIn of tokenIn into the other pair token at the
// latest feed price, rounding down.
func (o *ChainlinkOracle) GetAmountOut(ctx context.Context, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	if tokenIn != o.token0 && tokenIn != o.token1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, tokenIn)
	}

	rd, err := o.feed.LatestRoundData(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: latest round: %w", err)
	}
	if rd.AnsweredInRound.Cmp(rd.RoundID) != 0 {
		return nil, fmt.Errorf("%w: round %s answered in %s", ErrStalePrice, rd.RoundID, rd.AnsweredInRound)
	}
	if rd.Answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, rd.Answer)
	}

	in := amountIn.ToBig()
	num := new(big.Int)
	den := new(big.Int)
	if tokenIn == o.token0 {
		num.Mul(in, rd.Answer).Mul(num, o.token1Scale)
		den.Mul(o.token0Scale, o.feedScale)
	} else {
		num.Mul(in, o.feedScale).Mul(num, o.token0Scale)
		den.Mul(rd.Answer, o.token1Scale)
	}
	out, overflow := uint256.FromBig(num.Quo(num, den))
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out, nil
}
