// Package swap provides the exchange venue vaults liquidate positions on.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/atmx/option-vault/internal/ledger"
	"github.com/atmx/option-vault/internal/model"
)

var (
	ErrSameToken    = errors.New("swap: identical tokens")
	ErrZeroAmount   = errors.New("swap: zero amount in")
	ErrInvalidValue = errors.New("swap: attached value does not match amount in")
	ErrZeroOutput   = errors.New("swap: insufficient output amount")
)

// Venue exchanges tokenIn for tokenOut on behalf of tx.Sender. ERC20 input
// is pulled with TransferFrom, so the sender approves the venue first;
// native input is attached as tx.Value.
type Venue interface {
	Address() common.Address
	Swap(ctx context.Context, tx model.Tx, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error)
}

// Quoter prices a conversion. The oracle manager satisfies it.
type Quoter interface {
	GetAmountOut(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error)
}

// OracleVenue fills swaps at the quoter's price out of reserves it holds in
// the ledger under its own address.
type OracleVenue struct {
	address common.Address
	ledger  ledger.Ledger
	quoter  Quoter
	logger  *slog.Logger
}

// NewOracleVenue creates a venue. Fund it by crediting address in the ledger.
func NewOracleVenue(address common.Address, l ledger.Ledger, q Quoter, logger *slog.Logger) *OracleVenue {
	if logger == nil {
		logger = slog.Default()
	}
	return &OracleVenue{
		address: address,
		ledger:  l,
		quoter:  q,
		logger:  logger.With("component", "swap_venue"),
	}
}

func (v *OracleVenue) Address() common.Address { return v.address }

func (v *OracleVenue) Swap(ctx context.Context, tx model.Tx, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	if tokenIn == tokenOut {
		return nil, ErrSameToken
	}
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}

	value := tx.AttachedValue()
	if tokenIn == model.NativeToken {
		if !value.Eq(amountIn) {
			return nil, fmt.Errorf("%w: value %s, amount %s", ErrInvalidValue, value.Dec(), amountIn.Dec())
		}
	} else if !value.IsZero() {
		return nil, fmt.Errorf("%w: value %s on token input", ErrInvalidValue, value.Dec())
	}

	amountOut, err := v.quoter.GetAmountOut(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	if amountOut.IsZero() {
		return nil, ErrZeroOutput
	}

	if tokenIn == model.NativeToken {
		err = v.ledger.Transfer(tokenIn, tx.Sender, v.address, amountIn)
	} else {
		err = v.ledger.TransferFrom(tokenIn, v.address, tx.Sender, v.address, amountIn)
	}
	if err != nil {
		return nil, fmt.Errorf("swap: pull input: %w", err)
	}
	if err := v.ledger.Transfer(tokenOut, v.address, tx.Sender, amountOut); err != nil {
		return nil, fmt.Errorf("swap: pay output: %w", err)
	}

	v.logger.Debug("swap filled",
		"sender", tx.Sender,
		"token_in", tokenIn,
		"token_out", tokenOut,
		"amount_in", amountIn.Dec(),
		"amount_out", amountOut.Dec(),
	)
	return amountOut, nil
}
